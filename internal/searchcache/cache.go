// Package searchcache stores paginated catalog search results keyed by
// normalized query. Cache values are immutable: every write returns a new
// *Cache and readers holding an older value keep a consistent snapshot.
package searchcache

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oxide-lab/discover/internal/model"
)

// TrendingKey is the reserved key for query-less requests. Typed queries are
// never empty after normalization, so they cannot collide with it.
const TrendingKey = ""

const (
	DefaultMaxEntries       = 32
	DefaultMaxPagesPerQuery = 8
	DefaultMaxItemsPerPage  = 100
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Limits bounds the size of a cache. Non-positive values fall back to the
// package defaults.
type Limits struct {
	MaxEntries       int
	MaxPagesPerQuery int
	MaxItemsPerPage  int
}

func (l Limits) withDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxPagesPerQuery <= 0 {
		l.MaxPagesPerQuery = DefaultMaxPagesPerQuery
	}
	if l.MaxItemsPerPage <= 0 {
		l.MaxItemsPerPage = DefaultMaxItemsPerPage
	}
	return l
}

// Page is one fetched window of results for a query.
type Page struct {
	Offset    int
	Limit     int
	UpdatedAt time.Time
	Items     []model.Record
}

// Entry holds every cached page of one normalized query, sorted by offset.
type Entry struct {
	Query     string
	UpdatedAt time.Time
	Pages     []Page
}

// Records concatenates the entry's pages in offset order, dropping records
// already seen on an earlier page. maxItems <= 0 returns everything.
func (e Entry) Records(maxItems int) []model.Record {
	out := make([]model.Record, 0)
	seen := make(map[string]struct{})
	for _, p := range e.Pages {
		for _, r := range p.Items {
			if maxItems > 0 && len(out) >= maxItems {
				return out
			}
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// ItemCount returns the number of records stored across all pages.
func (e Entry) ItemCount() int {
	n := 0
	for _, p := range e.Pages {
		n += len(p.Items)
	}
	return n
}

// Cache is an ordered list of entries, most recently written first.
// The zero value and a nil *Cache are both empty caches.
type Cache struct {
	entries []Entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// NormalizeQuery trims and lowercases q. Blank queries map to TrendingKey.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the entries, most recently written first. The returned
// entries share storage with the cache and must be treated as read-only.
func (c *Cache) Entries() []Entry {
	if c == nil {
		return []Entry{}
	}
	return slices.Clone(c.entries)
}

// Entry returns the entry for query.
func (c *Cache) Entry(query string) (Entry, bool) {
	return c.find(NormalizeQuery(query))
}

func (c *Cache) find(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	for _, e := range c.entries {
		if e.Query == key {
			return e, true
		}
	}
	return Entry{}, false
}

// UpsertPage sanitizes items and stores them as the page at offset for query.
// It returns c unchanged when no item survives sanitization.
func (c *Cache) UpsertPage(query string, offset, limit int, items []model.Raw, lim Limits) *Cache {
	return c.UpsertRecords(query, offset, limit, model.SanitizeAll(items), lim)
}

// UpsertRecords stores records as the page at offset for query, replacing any
// page already at that offset, and moves the entry to the front. It returns c
// unchanged when records is empty after deduplication.
func (c *Cache) UpsertRecords(query string, offset, limit int, records []model.Record, lim Limits) *Cache {
	records = model.Dedupe(records)
	if len(records) == 0 {
		return c
	}
	lim = lim.withDefaults()
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if len(records) > lim.MaxItemsPerPage {
		records = records[:lim.MaxItemsPerPage]
	}

	key := NormalizeQuery(query)
	t := now()
	page := Page{Offset: offset, Limit: limit, UpdatedAt: t, Items: records}

	prev, _ := c.find(key)
	pages := make([]Page, 0, len(prev.Pages)+1)
	for _, p := range prev.Pages {
		if p.Offset != offset {
			pages = append(pages, p)
		}
	}
	pages = append(pages, page)
	pages = capPages(pages, offset, lim.MaxPagesPerQuery)
	sortPages(pages)

	entries := make([]Entry, 0, c.Len()+1)
	entries = append(entries, Entry{Query: key, UpdatedAt: t, Pages: pages})
	if c != nil {
		for _, e := range c.entries {
			if e.Query != key {
				entries = append(entries, e)
			}
		}
	}
	if len(entries) > lim.MaxEntries {
		entries = entries[:lim.MaxEntries]
	}
	return &Cache{entries: entries}
}

// capPages evicts the least recently written pages until at most n remain.
// The page at offset keep is never evicted. Ties evict the higher offset.
func capPages(pages []Page, keep, n int) []Page {
	for len(pages) > n {
		victim := -1
		for i, p := range pages {
			if p.Offset == keep {
				continue
			}
			if victim < 0 {
				victim = i
				continue
			}
			v := pages[victim]
			if p.UpdatedAt.Before(v.UpdatedAt) || (p.UpdatedAt.Equal(v.UpdatedAt) && p.Offset > v.Offset) {
				victim = i
			}
		}
		if victim < 0 {
			break
		}
		pages = append(pages[:victim:victim], pages[victim+1:]...)
	}
	return pages
}

func sortPages(pages []Page) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Offset < pages[j].Offset })
}

// Page returns the records cached for exactly (query, offset), or an empty
// slice on a miss.
func (c *Cache) Page(query string, offset int) []model.Record {
	if offset < 0 {
		offset = 0
	}
	e, ok := c.find(NormalizeQuery(query))
	if !ok {
		return []model.Record{}
	}
	for _, p := range e.Pages {
		if p.Offset == offset {
			return slices.Clone(p.Items)
		}
	}
	return []model.Record{}
}

// QueryResults flattens every cached page of query in offset order,
// deduplicated, stopping after maxItems (<= 0 means no cap).
func (c *Cache) QueryResults(query string, maxItems int) []model.Record {
	e, ok := c.find(NormalizeQuery(query))
	if !ok {
		return []model.Record{}
	}
	return e.Records(maxItems)
}

// Remove drops the entry for query. It returns c unchanged when absent.
func (c *Cache) Remove(query string) *Cache {
	key := NormalizeQuery(query)
	if _, ok := c.find(key); !ok {
		return c
	}
	entries := make([]Entry, 0, c.Len()-1)
	for _, e := range c.entries {
		if e.Query != key {
			entries = append(entries, e)
		}
	}
	return &Cache{entries: entries}
}

// Clear returns an empty cache.
func (c *Cache) Clear() *Cache {
	return New()
}
