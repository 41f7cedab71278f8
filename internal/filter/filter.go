// Package filter implements the predicate and ordering pipeline applied to
// discovered model records before display.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/oxide-lab/discover/internal/model"
)

// Any is the wildcard value for string filters.
const Any = "any"

// FormatGGUF is the only file format the runtime can load.
const FormatGGUF = "gguf"

// SizeBucket groups records by the byte size of their primary file.
type SizeBucket string

const (
	SizeAny    SizeBucket = Any
	SizeSmall  SizeBucket = "small"  // <= 4 GiB
	SizeMedium SizeBucket = "medium" // 4-8 GiB
	SizeLarge  SizeBucket = "large"  // > 8 GiB
)

const (
	gib             = int64(1) << 30
	smallMax        = 4 * gib
	mediumMax       = 8 * gib
	vramOverheadPct = 20
)

// SortKey selects the metric records are ordered by.
type SortKey string

const (
	SortDownloads    SortKey = "downloads"
	SortLikes        SortKey = "likes"
	SortLastModified SortKey = "updated"
	SortSize         SortKey = "size"
)

// Filters is the full filter and sort selection. Zero-valued string fields
// and the "any" wildcard disable the corresponding predicate.
type Filters struct {
	Format        string
	Architectures []string
	Quantization  string
	License       string
	PipelineTag   string
	Language      string
	ParamMin      *float64 // billions, inclusive
	ParamMax      *float64 // billions, exclusive
	Size          SizeBucket
	Tags          []string
	MinDownloads  int64
	SortBy        SortKey
	Descending    bool
}

// Default returns filters that accept everything, most downloaded first.
func Default() Filters {
	return Filters{
		Format:     Any,
		Size:       SizeAny,
		SortBy:     SortDownloads,
		Descending: true,
	}
}

func isAny(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, Any)
}

func (f Filters) sizeActive() bool {
	return !isAny(string(f.Size))
}

func (f Filters) quantActive() bool {
	return !isAny(f.Quantization)
}

// Active reports whether any predicate would be evaluated.
func (f Filters) Active() bool {
	return !isAny(f.Format) || len(f.Architectures) > 0 || f.quantActive() ||
		!isAny(f.License) || !isAny(f.PipelineTag) || !isAny(f.Language) ||
		f.ParamMin != nil || f.ParamMax != nil || f.sizeActive() ||
		len(f.Tags) > 0 || f.MinDownloads > 0
}

// Apply returns the records that pass every active predicate, ordered by the
// selected metric. The input slice is not modified.
func Apply(records []model.Record, f Filters) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Match(r, f) {
			out = append(out, r)
		}
	}
	Sort(out, f.SortBy, f.Descending)
	return out
}

// Match reports whether r passes every active predicate in f.
func Match(r model.Record, f Filters) bool {
	if !isAny(f.Format) && !strings.EqualFold(strings.TrimSpace(f.Format), FormatGGUF) {
		return false
	}
	if r.IsPlaceholder() && (f.sizeActive() || f.quantActive()) {
		return false
	}
	if len(f.Architectures) > 0 && !matchArchitectures(r, f.Architectures) {
		return false
	}
	if f.quantActive() && !matchQuantization(r, f.Quantization) {
		return false
	}
	if !isAny(f.License) && !matchLicense(r, f.License) {
		return false
	}
	if !isAny(f.PipelineTag) && r.PipelineTag != strings.TrimSpace(f.PipelineTag) {
		return false
	}
	if !isAny(f.Language) && !matchLanguage(r, f.Language) {
		return false
	}
	if (f.ParamMin != nil || f.ParamMax != nil) && !matchParams(r, f.ParamMin, f.ParamMax) {
		return false
	}
	if f.sizeActive() && SizeBucketOf(r) != SizeBucket(strings.ToLower(strings.TrimSpace(string(f.Size)))) {
		return false
	}
	if len(f.Tags) > 0 && !matchTags(r, f.Tags) {
		return false
	}
	if f.MinDownloads > 0 && r.Downloads < f.MinDownloads {
		return false
	}
	return true
}

// archAliases maps a canonical architecture to substrings that identify it in
// a repository id, display name or tag. Matching is by substring, so an alias
// must not occur inside another architecture's names.
var archAliases = []struct {
	arch    string
	aliases []string
}{
	{"llama", []string{"llama", "codellama", "vicuna", "tinyllama", "hermes"}},
	{"mistral", []string{"mistral", "zephyr"}},
	{"mixtral", []string{"mixtral"}},
	{"qwen2", []string{"qwen2", "qwen1.5"}},
	{"qwen3", []string{"qwen3"}},
	{"gemma", []string{"gemma"}},
	{"phi3", []string{"phi-3", "phi3", "phi-4", "phi4"}},
	{"phi2", []string{"phi-2", "phi2"}},
	{"falcon", []string{"falcon"}},
	{"starcoder2", []string{"starcoder"}},
	{"deepseek2", []string{"deepseek"}},
	{"command-r", []string{"command-r", "c4ai"}},
	{"stablelm", []string{"stablelm"}},
	{"gpt2", []string{"gpt2", "gpt-2"}},
	{"bert", []string{"bert"}},
	{"mamba", []string{"mamba"}},
}

// Architectures returns the lowercase architecture set of r: its own list plus
// every alias found in its id, name and tags.
func Architectures(r model.Record) []string {
	set := make([]string, 0, len(r.Architectures)+2)
	add := func(a string) {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && !slices.Contains(set, a) {
			set = append(set, a)
		}
	}
	for _, a := range r.Architectures {
		add(a)
	}
	hay := strings.ToLower(r.ID + " " + r.Name + " " + strings.Join(r.Tags, " "))
	for _, e := range archAliases {
		for _, alias := range e.aliases {
			if strings.Contains(hay, alias) {
				add(e.arch)
				break
			}
		}
	}
	return set
}

func matchArchitectures(r model.Record, want []string) bool {
	have := Architectures(r)
	for _, w := range want {
		if slices.Contains(have, strings.ToLower(strings.TrimSpace(w))) {
			return true
		}
	}
	return false
}

// NormalizeQuantization canonicalizes a quantization label, e.g. "q4_k_m" or
// "Q4-K-M" both become "Q4_K_M".
func NormalizeQuantization(q string) string {
	q = strings.ToUpper(strings.TrimSpace(q))
	return strings.ReplaceAll(q, "-", "_")
}

func matchQuantization(r model.Record, want string) bool {
	w := NormalizeQuantization(want)
	for _, f := range r.Files {
		if f.Quantization != "" && NormalizeQuantization(f.Quantization) == w {
			return true
		}
	}
	return false
}

// Licenses returns the lowercase license set of r: the license field plus
// every "license:<value>" tag.
func Licenses(r model.Record) []string {
	var out []string
	if l := strings.ToLower(strings.TrimSpace(r.License)); l != "" {
		out = append(out, l)
	}
	for _, t := range r.Tags {
		lt := strings.ToLower(t)
		if v, ok := strings.CutPrefix(lt, "license:"); ok && v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func matchLicense(r model.Record, want string) bool {
	w := strings.ToLower(strings.TrimSpace(want))
	for _, l := range Licenses(r) {
		if l == w || strings.Contains(l, w) {
			return true
		}
	}
	return false
}

var localeTag = regexp.MustCompile(`^(?:language:)?([a-z]{2})(?:-([a-z]{2}))?$`)

// Languages returns the lowercase language set of r: its language codes plus
// tags that look like locale codes.
func Languages(r model.Record) []string {
	var out []string
	add := func(l string) {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	for _, l := range r.Languages {
		add(strings.ToLower(strings.TrimSpace(l)))
	}
	for _, t := range r.Tags {
		m := localeTag.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			continue
		}
		// letter pairs that are not ISO 639 codes
		if _, err := language.ParseBase(m[1]); err != nil {
			continue
		}
		if m[2] != "" {
			add(m[1] + "-" + m[2])
		} else {
			add(m[1])
		}
	}
	return out
}

func matchLanguage(r model.Record, want string) bool {
	return slices.Contains(Languages(r), strings.ToLower(strings.TrimSpace(want)))
}

var paramLabel = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([bm])`)

// ParamBillions parses a leading "<number>(b|m)" parameter label into
// billions of parameters.
func ParamBillions(label string) (float64, bool) {
	m := paramLabel.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "m") {
		v /= 1000
	}
	return v, true
}

func matchParams(r model.Record, lo, hi *float64) bool {
	v, ok := ParamBillions(r.ParameterCount)
	if !ok {
		return false
	}
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v >= *hi {
		return false
	}
	return true
}

// SizeBucketOf classifies r by its primary file size. It returns SizeAny when
// the size is unknown.
func SizeBucketOf(r model.Record) SizeBucket {
	f, ok := r.PrimaryFile()
	if !ok || f.Size <= 0 {
		return SizeAny
	}
	switch {
	case f.Size <= smallMax:
		return SizeSmall
	case f.Size <= mediumMax:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// EstimateVRAM returns a rough VRAM requirement in bytes for loading the
// primary file, or 0 when its size is unknown.
func EstimateVRAM(r model.Record) int64 {
	f, ok := r.PrimaryFile()
	if !ok || f.Size <= 0 {
		return 0
	}
	return f.Size + f.Size*vramOverheadPct/100
}

func normalizeTag(t string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), "_", "-")
}

func matchTags(r model.Record, want []string) bool {
	have := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		have[normalizeTag(t)] = struct{}{}
	}
	for _, w := range want {
		nw := normalizeTag(w)
		if nw == "" {
			continue
		}
		if _, ok := have[nw]; !ok {
			return false
		}
	}
	return true
}

func primarySize(r model.Record) int64 {
	if f, ok := r.PrimaryFile(); ok && f.Size > 0 {
		return f.Size
	}
	return 0
}

func metricLess(key SortKey, a, b model.Record) (less, equal bool) {
	switch key {
	case SortLikes:
		return a.Likes < b.Likes, a.Likes == b.Likes
	case SortLastModified:
		var ta, tb int64
		if a.LastModified != nil {
			ta = a.LastModified.UnixMilli()
		}
		if b.LastModified != nil {
			tb = b.LastModified.UnixMilli()
		}
		return ta < tb, ta == tb
	case SortSize:
		sa, sb := primarySize(a), primarySize(b)
		return sa < sb, sa == sb
	default:
		return a.Downloads < b.Downloads, a.Downloads == b.Downloads
	}
}

// Sort orders records in place ascending by key, ties broken by repository
// id, and reverses the result when descending is set.
func Sort(records []model.Record, key SortKey, descending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		less, equal := metricLess(key, records[i], records[j])
		if equal {
			return records[i].ID < records[j].ID
		}
		return less
	})
	if descending {
		slices.Reverse(records)
	}
}

// ParseSize parses a size bucket flag value.
func ParseSize(s string) (SizeBucket, error) {
	switch b := SizeBucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "", SizeAny:
		return SizeAny, nil
	case SizeSmall, SizeMedium, SizeLarge:
		return b, nil
	}
	return SizeAny, fmt.Errorf("unknown size bucket %q (want any, small, medium or large)", s)
}

// ParseSort parses a sort key flag value.
func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "", SortDownloads:
		return SortDownloads, nil
	case SortLikes, SortLastModified, SortSize:
		return k, nil
	case "lastmodified", "last-modified", "modified":
		return SortLastModified, nil
	}
	return SortDownloads, fmt.Errorf("unknown sort key %q (want downloads, likes, updated or size)", s)
}
