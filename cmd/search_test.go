package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oxide-lab/discover/internal/discovery"
	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

// resetSearchFlags restores every search flag to its default.
func resetSearchFlags() {
	searchCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Value.Type() != "stringSlice" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	flagSearchArch, flagSearchTags = nil, nil
}

// newFlagCmd returns a throwaway command sharing the search flags so
// Changed() can be exercised without running searchCmd.
func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	resetSearchFlags()
	t.Cleanup(resetSearchFlags)
	c := &cobra.Command{Use: "x"}
	c.Flags().AddFlagSet(searchCmd.Flags())
	if err := c.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return c
}

func TestSearchFilters(t *testing.T) {
	c := newFlagCmd(t, "--arch", "llama", "--quant", "q4_k_m", "--min-params", "3", "--size", "SMALL", "--sort", "likes", "--asc", "--tag", "gguf", "--tag", "chat")

	f, err := searchFilters(c)
	if err != nil {
		t.Fatalf("searchFilters: %v", err)
	}
	if !slices.Equal(f.Architectures, []string{"llama"}) || f.Quantization != "q4_k_m" || f.Size != filter.SizeSmall {
		t.Fatalf("filters = %+v", f)
	}
	if f.ParamMin == nil || *f.ParamMin != 3 || f.ParamMax != nil {
		t.Fatalf("param range = %v %v", f.ParamMin, f.ParamMax)
	}
	if f.SortBy != filter.SortLikes || f.Descending || !slices.Equal(f.Tags, []string{"gguf", "chat"}) {
		t.Fatalf("sort/tags = %+v", f)
	}
}

func TestSearchFilters_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"--size", "huge"},
		{"--sort", "stars"},
		{"--min-params", "8", "--max-params", "7"},
	} {
		c := newFlagCmd(t, args...)
		if _, err := searchFilters(c); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestPrintSearchResults(t *testing.T) {
	mod := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	res := discovery.Result{
		Query:  "llama",
		Source: discovery.SourceLive,
		Total:  2,
		Records: []model.Record{
			{ID: "meta/llama-gguf", ParameterCount: "8B", Quantizations: []string{"Q4_K_M", "Q5_K_M", "Q6_K", "Q8_0"},
				Files: []model.File{{Filename: "a.gguf", Size: 5 << 30, DownloadURL: "u"}}, Downloads: 42, LastModified: &mod},
			{ID: "seed/placeholder", Kind: model.KindPlaceholder},
		},
	}
	var buf bytes.Buffer
	printSearchResults(&buf, res)
	out := buf.String()

	for _, want := range []string{"meta/llama-gguf", "Q4_K_M,Q5_K_M,Q6_K,+1", "5.0G", "6.0G", "2025-05-01", "seed/placeholder", "Results (2 found)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[filters]") {
		t.Fatalf("unexpected filter note:\n%s", out)
	}
}

func TestPrintSearchResults_FilteredNote(t *testing.T) {
	res := discovery.Result{
		Query:    "llama",
		Total:    5,
		Filtered: true,
		Records:  []model.Record{{ID: "meta/llama-gguf"}, {ID: "meta/llama-2"}},
	}
	var buf bytes.Buffer
	printSearchResults(&buf, res)
	if out := buf.String(); !strings.Contains(out, "[filters] 3 hidden by active filters") {
		t.Fatalf("missing filter note:\n%s", out)
	}
}

func TestSizeLabel(t *testing.T) {
	tests := map[int64]string{0: "-", -1: "-", 1: "1M", 700 << 20: "700M", 1 << 30: "1.0G"}
	for in, want := range tests {
		if got := sizeLabel(in); got != want {
			t.Errorf("sizeLabel(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestOfflineSearchPersistsHistory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OXIDE_HOME", home)
	t.Setenv("OXIDE_REDIS_PASSWORD", "")

	rootCmd.SetArgs([]string{"search", "--offline", "llama", "gguf"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetSearchFlags()
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "discover-store.json")); err != nil {
		t.Fatalf("store not written: %v", err)
	}

	s, err := openSession(context.Background(), true)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.close()
	if got := s.svc.History(); !slices.Equal(got, []string{"llama gguf"}) {
		t.Fatalf("history = %v", got)
	}
}
