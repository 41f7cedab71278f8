package history

import (
	"context"
	"slices"
	"testing"

	"github.com/oxide-lab/discover/internal/store"
)

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		history []string
		query   string
		max     int
		want    []string
	}{
		{"move to front", []string{"mistral", "llama", "phi"}, "llama", 5, []string{"llama", "mistral", "phi"}},
		{"new query", []string{"mistral"}, "qwen", 5, []string{"qwen", "mistral"}},
		{"case insensitive", []string{"Mistral", "phi"}, "MISTRAL", 5, []string{"MISTRAL", "phi"}},
		{"trimmed", []string{"phi"}, "  gemma ", 5, []string{"gemma", "phi"}},
		{"capped", []string{"a", "b", "c"}, "d", 3, []string{"d", "a", "b"}},
		{"blank query", []string{"a", "b"}, "   ", 5, []string{"a", "b"}},
		{"empty history", nil, "x", 5, []string{"x"}},
		{"default max", nil, "", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Update(tt.history, tt.query, tt.max)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Update(%v, %q, %d) = %v, want %v", tt.history, tt.query, tt.max, got, tt.want)
			}
		})
	}
}

func TestUpdate_DoesNotModifyInput(t *testing.T) {
	in := []string{"a", "b", "c"}
	_ = Update(in, "c", 2)
	if !slices.Equal(in, []string{"a", "b", "c"}) {
		t.Fatalf("input modified: %v", in)
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	h := Update(Update(nil, "phi", 5), "llama", 5)
	if err := Save(ctx, kv, DefaultStoreKey, h); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := Load(ctx, kv, DefaultStoreKey, 5, nil)
	if !slices.Equal(got, []string{"llama", "phi"}) {
		t.Fatalf("Load = %v", got)
	}
}

func TestLoad_Malformed(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	if got := Load(ctx, kv, "missing", 5, nil); got == nil || len(got) != 0 {
		t.Fatalf("missing = %v", got)
	}

	_ = kv.Set(ctx, "bad", "{not json")
	if got := Load(ctx, kv, "bad", 5, nil); len(got) != 0 {
		t.Fatalf("bad json = %v", got)
	}

	_ = kv.Set(ctx, "mixed", `["a", 1, null, "A", "b", ""]`)
	if got := Load(ctx, kv, "mixed", 5, nil); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("mixed = %v", got)
	}
}
