// Package history keeps the list of recent search queries, most recent first.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oxide-lab/discover/internal/store"
)

const (
	DefaultMax      = 20
	DefaultStoreKey = "search-history"
)

// Update moves query to the front of history, dropping any earlier entry that
// matches it case-insensitively, and caps the result at limit entries. A blank
// query returns a copy of history. history itself is never modified.
func Update(history []string, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMax
	}
	query = strings.TrimSpace(query)
	out := make([]string, 0, min(len(history)+1, limit))
	if query != "" {
		out = append(out, query)
	}
	for _, h := range history {
		if len(out) >= limit {
			break
		}
		h = strings.TrimSpace(h)
		if h == "" || containsFold(out, h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Decode parses a stored history. Non-string elements are skipped and
// unreadable data yields an empty history.
func Decode(data []byte, limit int) []string {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{}
	}
	list := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			list = append(list, s)
		}
	}
	return Update(list, "", limit)
}

// Load reads the history saved under key, degrading to an empty history on
// store errors or malformed data.
func Load(ctx context.Context, kv store.KV, key string, limit int, log logrus.FieldLogger) []string {
	if log == nil {
		log = logrus.StandardLogger()
	}
	data, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("cannot read search history, starting empty")
		return []string{}
	}
	if !ok {
		return []string{}
	}
	return Decode([]byte(data), limit)
}

// Save writes history under key.
func Save(ctx context.Context, kv store.KV, key string, history []string) error {
	if history == nil {
		history = []string{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("cannot encode search history: %w", err)
	}
	if err := kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("cannot save search history: %w", err)
	}
	return nil
}
