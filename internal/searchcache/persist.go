package searchcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oxide-lab/discover/internal/model"
	"github.com/oxide-lab/discover/internal/store"
)

// DefaultStoreKey is the key the cache is saved under.
const DefaultStoreKey = "search-cache"

type wirePage struct {
	Offset    int            `json:"offset"`
	Limit     int            `json:"limit"`
	UpdatedAt int64          `json:"updatedAt"`
	Items     []model.Record `json:"items"`
}

type wireEntry struct {
	Query     string     `json:"query"`
	UpdatedAt int64      `json:"updatedAt"`
	Pages     []wirePage `json:"pages"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Encode serializes c as a JSON array of entries with their pages.
func Encode(c *Cache) ([]byte, error) {
	out := make([]wireEntry, 0, c.Len())
	for _, e := range c.Entries() {
		we := wireEntry{Query: e.Query, UpdatedAt: millis(e.UpdatedAt), Pages: make([]wirePage, 0, len(e.Pages))}
		for _, p := range e.Pages {
			we.Pages = append(we.Pages, wirePage{
				Offset:    p.Offset,
				Limit:     p.Limit,
				UpdatedAt: millis(p.UpdatedAt),
				Items:     p.Items,
			})
		}
		out = append(out, we)
	}
	return json.Marshal(out)
}

// Decode parses data written by Encode, or the older flat
// {query, updatedAt, items} entry shape, which becomes one page at offset 0.
// Unreadable entries, pages and items are dropped; dropped counts them.
// Decode never fails: unusable input yields an empty cache.
func Decode(data []byte, lim Limits) (c *Cache, dropped int) {
	lim = lim.withDefaults()
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return New(), 1
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		e, n, ok := decodeEntry(m, lim)
		dropped += n
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[e.Query]; dup {
			dropped++
			continue
		}
		seen[e.Query] = struct{}{}
		entries = append(entries, e)
	}
	if len(entries) > lim.MaxEntries {
		dropped += len(entries) - lim.MaxEntries
		entries = entries[:lim.MaxEntries]
	}
	return &Cache{entries: entries}, dropped
}

func decodeEntry(m map[string]any, lim Limits) (Entry, int, bool) {
	query, ok := m["query"].(string)
	if !ok {
		return Entry{}, 0, false
	}
	updated := fromMillis(intField(m["updatedAt"]))

	var (
		pages   []Page
		dropped int
	)
	switch {
	case m["pages"] != nil:
		arr, ok := m["pages"].([]any)
		if !ok {
			return Entry{}, 0, false
		}
		offsets := make(map[int]struct{}, len(arr))
		for _, pv := range arr {
			pm, ok := pv.(map[string]any)
			if !ok {
				dropped++
				continue
			}
			p, ok := decodePage(pm, lim)
			if !ok {
				dropped++
				continue
			}
			if _, dup := offsets[p.Offset]; dup {
				dropped++
				continue
			}
			offsets[p.Offset] = struct{}{}
			pages = append(pages, p)
		}
	case m["items"] != nil:
		items := decodeItems(m["items"], lim)
		if len(items) == 0 {
			return Entry{}, 0, false
		}
		pages = []Page{{Offset: 0, Limit: len(items), UpdatedAt: updated, Items: items}}
	}
	if len(pages) == 0 {
		return Entry{}, dropped, false
	}

	before := len(pages)
	pages = capPages(pages, -1, lim.MaxPagesPerQuery)
	dropped += before - len(pages)
	sortPages(pages)

	if updated.IsZero() {
		for _, p := range pages {
			if p.UpdatedAt.After(updated) {
				updated = p.UpdatedAt
			}
		}
	}
	return Entry{Query: NormalizeQuery(query), UpdatedAt: updated, Pages: pages}, dropped, true
}

func decodePage(m map[string]any, lim Limits) (Page, bool) {
	offset, ok := m["offset"].(float64)
	if !ok || offset < 0 {
		return Page{}, false
	}
	items := decodeItems(m["items"], lim)
	if len(items) == 0 {
		return Page{}, false
	}
	limit := int(intField(m["limit"]))
	if limit <= 0 {
		limit = len(items)
	}
	return Page{
		Offset:    int(offset),
		Limit:     limit,
		UpdatedAt: fromMillis(intField(m["updatedAt"])),
		Items:     items,
	}, true
}

func decodeItems(v any, lim Limits) []model.Record {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	raws := make([]model.Raw, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			raws = append(raws, m)
		}
	}
	items := model.SanitizeAll(raws)
	if len(items) > lim.MaxItemsPerPage {
		items = items[:lim.MaxItemsPerPage]
	}
	return items
}

func intField(v any) int64 {
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return 0
	}
	return int64(f)
}

// Load reads the cache saved under key. Store errors and malformed data are
// logged and degrade to an empty or partial cache.
func Load(ctx context.Context, kv store.KV, key string, lim Limits, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	data, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("cannot read search cache, starting empty")
		return New()
	}
	if !ok || data == "" {
		return New()
	}
	c, dropped := Decode([]byte(data), lim)
	if dropped > 0 {
		log.WithFields(logrus.Fields{"key": key, "dropped": dropped}).Debug("discarded unreadable search cache data")
	}
	return c
}

// Save writes c under key.
func Save(ctx context.Context, kv store.KV, key string, c *Cache) error {
	b, err := Encode(c)
	if err != nil {
		return fmt.Errorf("cannot encode search cache: %w", err)
	}
	if err := kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("cannot save search cache: %w", err)
	}
	return nil
}
