package searchcache

import (
	"strings"

	"github.com/oxide-lab/discover/internal/model"
	"github.com/oxide-lab/discover/internal/simsearch"
)

// Fallback returns the best substitute result set for query when no exact
// page is available. Tiers, first non-empty wins:
//
//  1. blank query: the trending entry, else the most recently written entry
//  2. typed query: every cached page of that query
//  3. lexical search of query over every cached record, up to fuzzyLimit hits
func (c *Cache) Fallback(query string, fuzzyLimit int) []model.Record {
	key := NormalizeQuery(query)
	if key == TrendingKey {
		if e, ok := c.find(TrendingKey); ok {
			if out := e.Records(0); len(out) > 0 {
				return out
			}
		} else if c.Len() > 0 {
			if out := c.entries[0].Records(0); len(out) > 0 {
				return out
			}
		}
	} else if e, ok := c.find(key); ok {
		if out := e.Records(0); len(out) > 0 {
			return out
		}
	}
	return c.fuzzy(query, fuzzyLimit)
}

func (c *Cache) fuzzy(query string, limit int) []model.Record {
	all := c.flatten()
	if len(all) == 0 {
		return []model.Record{}
	}

	docs := make([]simsearch.Document, 0, len(all))
	byID := make(map[string]model.Record, len(all))
	for _, r := range all {
		docs = append(docs, simsearch.Document{ID: r.ID, Text: searchText(r)})
		byID[r.ID] = r
	}

	hits := simsearch.New(docs).Search(query, limit)
	out := make([]model.Record, 0, len(hits))
	for _, h := range hits {
		if r, ok := byID[h.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// flatten returns every cached record in entry then page order, deduplicated.
func (c *Cache) flatten() []model.Record {
	var all []model.Record
	if c != nil {
		for _, e := range c.entries {
			all = append(all, e.Records(0)...)
		}
	}
	return model.Dedupe(all)
}

// separators are spaced out so "org/Llama-2-7B" indexes as separate words
var separators = strings.NewReplacer("/", " ", "-", " ", "_", " ", ".", " ")

func searchText(r model.Record) string {
	parts := []string{separators.Replace(r.ID), separators.Replace(r.Name), r.Author, r.PipelineTag}
	parts = append(parts, r.Tags...)
	return strings.Join(parts, " ")
}

// Lookup returns the most recently cached record with the given repository
// id, compared case-insensitively.
func (c *Cache) Lookup(id string) (model.Record, bool) {
	id = strings.TrimSpace(id)
	for _, r := range c.flatten() {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return model.Record{}, false
}
