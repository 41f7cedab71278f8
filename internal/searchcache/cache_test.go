package searchcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/oxide-lab/discover/internal/model"
)

func raws(ids ...string) []model.Raw {
	out := make([]model.Raw, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Raw{"id": id})
	}
	return out
}

func ids(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func equalIDs(t *testing.T, got []model.Record, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

// fakeClock makes now() advance one second per call.
func fakeClock(t *testing.T) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	prev := now
	now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	t.Cleanup(func() { now = prev })
}

func TestUpsertPage_EmptyItemsIsNoop(t *testing.T) {
	c := New().UpsertPage("llama", 0, 10, raws("a/b"), Limits{})

	if got := c.UpsertPage("llama", 20, 10, nil, Limits{}); got != c {
		t.Fatal("nil items must return the same cache")
	}
	bad := []model.Raw{{"id": ""}, {"name": "no id"}, {"id": 42}}
	if got := c.UpsertPage("llama", 20, 10, bad, Limits{}); got != c {
		t.Fatal("items rejected by sanitize must return the same cache")
	}

	var nilCache *Cache
	if got := nilCache.UpsertPage("q", 0, 10, nil, Limits{}); got != nil {
		t.Fatal("nil cache must stay nil on a no-op")
	}
}

func TestUpsertPage_DoesNotMutatePrevious(t *testing.T) {
	c1 := New().UpsertPage("llama", 0, 2, raws("a/1", "a/2"), Limits{})
	c2 := c1.UpsertPage("llama", 0, 2, raws("a/3"), Limits{})
	c3 := c2.UpsertPage("mistral", 0, 2, raws("m/1"), Limits{})

	equalIDs(t, c1.Page("llama", 0), "a/1", "a/2")
	equalIDs(t, c2.Page("llama", 0), "a/3")
	if c2.Len() != 1 || c3.Len() != 2 {
		t.Fatalf("len c2=%d c3=%d, want 1 and 2", c2.Len(), c3.Len())
	}
}

func TestQueryResults_TwoOffsetsFlattened(t *testing.T) {
	c := New().
		UpsertPage("Llama", 2, 2, raws("a/3", "a/2", "a/4"), Limits{}).
		UpsertPage("  llama ", 0, 2, raws("a/1", "a/2"), Limits{})

	equalIDs(t, c.QueryResults("LLAMA", 0), "a/1", "a/2", "a/3", "a/4")
	equalIDs(t, c.QueryResults("llama", 3), "a/1", "a/2", "a/3")

	e, ok := c.Entry("llama")
	if !ok {
		t.Fatal("entry missing")
	}
	if len(e.Pages) != 2 || e.Pages[0].Offset != 0 || e.Pages[1].Offset != 2 {
		t.Fatalf("pages not sorted by offset: %+v", e.Pages)
	}
}

func TestUpsertPage_SameOffsetReplaces(t *testing.T) {
	c := New().
		UpsertPage("phi", 0, 2, raws("p/1", "p/2"), Limits{}).
		UpsertPage("phi", 2, 2, raws("p/3"), Limits{}).
		UpsertPage("phi", 0, 2, raws("p/9"), Limits{})

	e, _ := c.Entry("phi")
	if len(e.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(e.Pages))
	}
	equalIDs(t, c.Page("phi", 0), "p/9")
	equalIDs(t, c.QueryResults("phi", 0), "p/9", "p/3")
}

func TestUpsertPage_NegativeOffsetFloored(t *testing.T) {
	c := New().UpsertPage("q", -5, -1, raws("x/1"), Limits{})
	equalIDs(t, c.Page("q", 0), "x/1")
	e, _ := c.Entry("q")
	if e.Pages[0].Offset != 0 || e.Pages[0].Limit != 0 {
		t.Fatalf("page = %+v", e.Pages[0])
	}
}

func TestUpsertPage_DedupesItems(t *testing.T) {
	c := New().UpsertPage("q", 0, 5, raws("x/1", "x/2", "x/1"), Limits{})
	equalIDs(t, c.Page("q", 0), "x/1", "x/2")
}

func TestCaps(t *testing.T) {
	lim := Limits{MaxEntries: 3, MaxPagesPerQuery: 2, MaxItemsPerPage: 4}
	c := New()
	for i := 0; i < 10; i++ {
		q := fmt.Sprintf("q%d", i%5)
		items := raws(fmt.Sprintf("a/%d", i), fmt.Sprintf("b/%d", i), fmt.Sprintf("c/%d", i),
			fmt.Sprintf("d/%d", i), fmt.Sprintf("e/%d", i), fmt.Sprintf("f/%d", i))
		c = c.UpsertPage(q, i*10, 6, items, lim)

		if c.Len() > lim.MaxEntries {
			t.Fatalf("entries = %d > %d", c.Len(), lim.MaxEntries)
		}
		for _, e := range c.Entries() {
			if len(e.Pages) > lim.MaxPagesPerQuery {
				t.Fatalf("pages = %d > %d", len(e.Pages), lim.MaxPagesPerQuery)
			}
			for _, p := range e.Pages {
				if len(p.Items) > lim.MaxItemsPerPage {
					t.Fatalf("items = %d > %d", len(p.Items), lim.MaxItemsPerPage)
				}
			}
		}
	}
}

func TestEntriesMostRecentFirst(t *testing.T) {
	lim := Limits{MaxEntries: 2}
	c := New().
		UpsertPage("a", 0, 1, raws("x/a"), lim).
		UpsertPage("b", 0, 1, raws("x/b"), lim).
		UpsertPage("a", 1, 1, raws("x/a2"), lim).
		UpsertPage("c", 0, 1, raws("x/c"), lim)

	got := c.Entries()
	if len(got) != 2 || got[0].Query != "c" || got[1].Query != "a" {
		t.Fatalf("entries = %v", got)
	}
	if _, ok := c.Entry("b"); ok {
		t.Fatal("b should have been evicted")
	}
}

func TestPageEviction_LeastRecentlyWritten(t *testing.T) {
	fakeClock(t)
	lim := Limits{MaxPagesPerQuery: 2}

	c := New().
		UpsertPage("q", 0, 1, raws("x/0"), lim).
		UpsertPage("q", 10, 1, raws("x/10"), lim).
		UpsertPage("q", 0, 1, raws("x/0b"), lim). // offset 10 is now the oldest write
		UpsertPage("q", 5, 1, raws("x/5"), lim)

	e, _ := c.Entry("q")
	if len(e.Pages) != 2 || e.Pages[0].Offset != 0 || e.Pages[1].Offset != 5 {
		t.Fatalf("pages = %+v", e.Pages)
	}
	equalIDs(t, c.Page("q", 0), "x/0b")
}

func TestPageEviction_NeverDropsWrittenPage(t *testing.T) {
	fakeClock(t)
	lim := Limits{MaxPagesPerQuery: 1}

	c := New().
		UpsertPage("q", 50, 1, raws("x/50"), lim).
		UpsertPage("q", 0, 1, raws("x/0"), lim)

	e, _ := c.Entry("q")
	if len(e.Pages) != 1 || e.Pages[0].Offset != 0 {
		t.Fatalf("pages = %+v", e.Pages)
	}
}

func TestCapPages_TieEvictsHigherOffset(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pages := []Page{
		{Offset: 0, UpdatedAt: ts},
		{Offset: 20, UpdatedAt: ts},
		{Offset: 10, UpdatedAt: ts},
		{Offset: 30, UpdatedAt: ts.Add(time.Second)},
	}
	got := capPages(pages, 30, 2)
	if len(got) != 2 || got[0].Offset != 0 || got[1].Offset != 30 {
		t.Fatalf("got %+v", got)
	}
}

func TestPage_MissIsEmpty(t *testing.T) {
	c := New().UpsertPage("q", 0, 1, raws("x/1"), Limits{})
	for _, got := range [][]model.Record{c.Page("q", 1), c.Page("other", 0), (*Cache)(nil).Page("q", 0)} {
		if got == nil || len(got) != 0 {
			t.Fatalf("miss = %v, want empty non-nil", got)
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := New().
		UpsertPage("a", 0, 1, raws("x/a"), Limits{}).
		UpsertPage("b", 0, 1, raws("x/b"), Limits{})

	if got := c.Remove("zzz"); got != c {
		t.Fatal("removing an absent query must return the same cache")
	}
	r := c.Remove(" A ")
	if r.Len() != 1 || c.Len() != 2 {
		t.Fatalf("len after remove = %d (orig %d)", r.Len(), c.Len())
	}
	if c.Clear().Len() != 0 {
		t.Fatal("clear left entries")
	}
}

func TestTrendingKey(t *testing.T) {
	c := New().UpsertPage("   ", 0, 1, raws("t/1"), Limits{})
	e, ok := c.Entry("")
	if !ok || e.Query != TrendingKey {
		t.Fatalf("entry = %+v, %v", e, ok)
	}
}
