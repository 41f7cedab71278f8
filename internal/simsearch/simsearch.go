// Package simsearch is a small in-memory lexical index used to rank cached
// records against a free-text query when no exact cache entry exists.
package simsearch

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Points awarded per query-token/document-token pair.
const (
	ScoreExact     = 8
	ScorePrefix    = 5
	ScoreSubstring = 2
)

// Document is one indexable text keyed by id.
type Document struct {
	ID   string
	Text string
}

// Hit is one scored search result.
type Hit struct {
	ID    string
	Score int
}

type entry struct {
	id     string
	tokens []string
}

// Index holds tokenized documents in insertion order.
type Index struct {
	docs []entry
	pos  map[string]int
}

// New builds an index over docs. Later documents replace earlier ones with
// the same id.
func New(docs []Document) *Index {
	idx := &Index{pos: make(map[string]int, len(docs))}
	for _, d := range docs {
		idx.Insert(d.ID, d.Text)
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Insert (re)indexes one document. A prior document with the same id is
// replaced in place, keeping its position for tie-breaking.
func (idx *Index) Insert(id, text string) {
	if idx.pos == nil {
		idx.pos = make(map[string]int)
	}
	e := entry{id: id, tokens: Tokenize(text)}
	if i, ok := idx.pos[id]; ok {
		idx.docs[i] = e
		return
	}
	idx.pos[id] = len(idx.docs)
	idx.docs = append(idx.docs, e)
}

// Search scores every document against query and returns hits with a
// positive score, highest first. limit <= 0 returns every hit.
func (idx *Index) Search(query string, limit int) []Hit {
	qtokens := Tokenize(query)
	if len(qtokens) == 0 {
		return []Hit{}
	}

	out := make([]Hit, 0)
	for _, d := range idx.docs {
		score := 0
		for _, q := range qtokens {
			for _, t := range d.tokens {
				score += pairScore(q, t)
			}
		}
		if score > 0 {
			out = append(out, Hit{ID: d.id, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func pairScore(q, t string) int {
	switch {
	case t == q:
		return ScoreExact
	case strings.HasPrefix(t, q):
		return ScorePrefix
	case strings.Contains(t, q):
		return ScoreSubstring
	}
	return 0
}

// Normalize lowercases s, applies canonical decomposition, strips every rune
// that is not a letter, number or space, and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r)
	})))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(out), " ")
}

// Tokenize normalizes s and splits it on whitespace.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
