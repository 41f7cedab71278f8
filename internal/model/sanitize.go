package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// PlaceholderTag is the legacy tag that marked static first-page seeds before
// records carried a kind.
const PlaceholderTag = "static-first-page"

// Sanitize validates raw and normalizes it into a Record. It reports false when
// raw has no usable repository identifier. Sanitize has no side effects and is
// idempotent over its own output.
func Sanitize(raw Raw) (Record, bool) {
	if raw == nil {
		return Record{}, false
	}
	id := firstString(raw, "id", "modelId", "repoId")
	if id == "" {
		return Record{}, false
	}

	r := Record{
		ID:             id,
		Name:           firstString(raw, "name"),
		Author:         firstString(raw, "author"),
		Description:    firstString(raw, "description"),
		License:        firstString(raw, "license"),
		PipelineTag:    firstString(raw, "pipelineTag", "pipeline_tag"),
		Library:        firstString(raw, "library", "library_name"),
		Languages:      stringSet(raw["languages"]),
		Downloads:      count(raw["downloads"]),
		Likes:          count(raw["likes"]),
		Tags:           stringSet(raw["tags"]),
		Architectures:  stringSet(raw["architectures"]),
		Quantizations:  stringSet(raw["quantizations"]),
		Files:          files(raw["files"]),
		LastModified:   timestamp(raw["lastModified"]),
		CreatedAt:      timestamp(raw["createdAt"]),
		ParameterCount: firstString(raw, "parameterCount"),
		ContextLength:  int(count(raw["contextLength"])),
	}
	if r.Name == "" {
		r.Name = lastSegment(id)
	}
	if r.Author == "" {
		r.Author = firstSegment(id)
	}

	if s, ok := raw["kind"].(string); ok && s == KindPlaceholder.String() {
		r.Kind = KindPlaceholder
	}
	tags := r.Tags[:0:0]
	for _, t := range r.Tags {
		if t == PlaceholderTag {
			r.Kind = KindPlaceholder
			continue
		}
		tags = append(tags, t)
	}
	r.Tags = tags
	return r, true
}

// Dedupe drops records whose ID was already seen, keeping first-seen order.
func Dedupe(records []Record) []Record {
	out := make([]Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SanitizeAll sanitizes every raw item, drops rejects and dedupes the rest.
func SanitizeAll(items []Raw) []Record {
	out := make([]Record, 0, len(items))
	for _, raw := range items {
		if r, ok := Sanitize(raw); ok {
			out = append(out, r)
		}
	}
	return Dedupe(out)
}

func firstString(raw Raw, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func lastSegment(id string) string {
	parts := strings.Split(id, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return p
		}
	}
	return id
}

func firstSegment(id string) string {
	for _, p := range strings.Split(id, "/") {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return id
}

// stringSet keeps the non-empty string elements of v in order, without
// duplicates. Anything that is not an array yields an empty slice.
func stringSet(v any) []string {
	var in []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				in = append(in, s)
			}
		}
	case []string:
		in = t
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func count(v any) int64 {
	f, ok := number(v)
	if !ok || f <= 0 {
		return 0
	}
	if f > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(f)
}

func files(v any) []File {
	arr, ok := v.([]any)
	if !ok {
		return []File{}
	}
	out := make([]File, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(m, "filename")
		url := firstString(m, "downloadUrl")
		if name == "" || url == "" {
			continue
		}
		out = append(out, File{
			Filename:     name,
			Size:         count(m["size"]),
			SHA256:       firstString(m, "sha256"),
			Quantization: firstString(m, "quantization"),
			DownloadURL:  url,
		})
	}
	return out
}

// timestamp accepts RFC 3339 strings and epoch milliseconds.
func timestamp(v any) *time.Time {
	if s, ok := v.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	}
	if f, ok := number(v); ok && f > 0 {
		t := time.UnixMilli(int64(f)).UTC()
		return &t
	}
	return nil
}
