package catalog

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

// hubModel is the subset of the hub's /api/models response that is kept.
type hubModel struct {
	ID           string         `json:"id"`
	ModelID      string         `json:"modelId"`
	Author       string         `json:"author"`
	Downloads    int64          `json:"downloads"`
	Likes        int64          `json:"likes"`
	Tags         []string       `json:"tags"`
	PipelineTag  string         `json:"pipeline_tag"`
	LibraryName  string         `json:"library_name"`
	LastModified string         `json:"lastModified"`
	CreatedAt    string         `json:"createdAt"`
	Siblings     []hubSibling   `json:"siblings"`
	CardData     map[string]any `json:"cardData"`
	GGUF         *hubGGUF       `json:"gguf"`
	Config       *hubConfig     `json:"config"`
	Safetensors  *hubTotal      `json:"safetensors"`
}

type hubSibling struct {
	Filename string `json:"rfilename"`
	Size     int64  `json:"size"`
	LFS      *struct {
		SHA256 string `json:"sha256"`
		Size   int64  `json:"size"`
	} `json:"lfs"`
}

type hubGGUF struct {
	Total         int64  `json:"total"`
	Architecture  string `json:"architecture"`
	ContextLength int    `json:"context_length"`
}

type hubConfig struct {
	ModelType string `json:"model_type"`
}

type hubTotal struct {
	Total int64 `json:"total"`
}

var (
	quantSegment = regexp.MustCompile(`(?i)^(i?q[1-8](?:_[a-z0-9]+)*|bf16|f16|f32)$`)
	shardSuffix  = regexp.MustCompile(`(?i)-\d{5}-of-\d{5}$`)
)

// DetectQuantization returns the normalized quantization tag embedded in a
// GGUF filename such as "llama-2-7b.Q4_K_M.gguf", or "" when there is none.
func DetectQuantization(filename string) string {
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	stem = shardSuffix.ReplaceAllString(stem, "")
	segs := strings.FieldsFunc(stem, func(r rune) bool { return r == '.' || r == '-' })
	for i := len(segs) - 1; i >= 0; i-- {
		if quantSegment.MatchString(segs[i]) {
			return filter.NormalizeQuantization(segs[i])
		}
	}
	return ""
}

// ParamLabel formats a parameter total as "7.2B" or "360M".
func ParamLabel(total int64) string {
	switch {
	case total <= 0:
		return ""
	case total >= 1_000_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(total)/1e9)) + "B"
	default:
		return trimZero(fmt.Sprintf("%.0f", float64(total)/1e6)) + "M"
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// raw converts m into the canonical raw record shape read by model.Sanitize.
func (m hubModel) raw(base string) model.Raw {
	id := m.ID
	if id == "" {
		id = m.ModelID
	}
	r := model.Raw{
		"id":          id,
		"author":      m.Author,
		"downloads":   m.Downloads,
		"likes":       m.Likes,
		"pipelineTag": m.PipelineTag,
		"library":     m.LibraryName,
	}
	if m.LastModified != "" {
		r["lastModified"] = m.LastModified
	}
	if m.CreatedAt != "" {
		r["createdAt"] = m.CreatedAt
	}

	tags := make([]any, 0, len(m.Tags))
	for _, t := range m.Tags {
		tags = append(tags, t)
	}
	r["tags"] = tags

	var (
		files  []any
		quants []any
		seenQ  = map[string]bool{}
	)
	for _, s := range m.Siblings {
		if !strings.EqualFold(path.Ext(s.Filename), "."+filter.FormatGGUF) {
			continue
		}
		f := map[string]any{
			"filename":    s.Filename,
			"downloadUrl": fmt.Sprintf("%s/%s/resolve/main/%s", base, id, s.Filename),
		}
		size := s.Size
		if s.LFS != nil {
			if size <= 0 {
				size = s.LFS.Size
			}
			if s.LFS.SHA256 != "" {
				f["sha256"] = s.LFS.SHA256
			}
		}
		if size > 0 {
			f["size"] = size
		}
		if q := DetectQuantization(s.Filename); q != "" {
			f["quantization"] = q
			if !seenQ[q] {
				seenQ[q] = true
				quants = append(quants, q)
			}
		}
		files = append(files, f)
	}
	r["files"] = files
	r["quantizations"] = quants

	var archs []any
	if m.GGUF != nil && m.GGUF.Architecture != "" {
		archs = append(archs, m.GGUF.Architecture)
	}
	if m.Config != nil && m.Config.ModelType != "" {
		archs = append(archs, m.Config.ModelType)
	}
	r["architectures"] = archs

	switch {
	case m.GGUF != nil && m.GGUF.Total > 0:
		r["parameterCount"] = ParamLabel(m.GGUF.Total)
	case m.Safetensors != nil && m.Safetensors.Total > 0:
		r["parameterCount"] = ParamLabel(m.Safetensors.Total)
	}
	if m.GGUF != nil && m.GGUF.ContextLength > 0 {
		r["contextLength"] = m.GGUF.ContextLength
	}

	if lic, ok := m.CardData["license"].(string); ok {
		r["license"] = lic
	}
	switch lang := m.CardData["language"].(type) {
	case string:
		r["languages"] = []any{lang}
	case []any:
		r["languages"] = lang
	}
	return r
}
