// Package model defines the sanitized model record shared by the discovery
// cache, the filter engine and the catalog client.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Raw is an untrusted catalog result as decoded from JSON.
type Raw = map[string]any

// Kind distinguishes fully resolved records from seed placeholders.
type Kind uint8

const (
	// KindResolved is a record describing a real repository with known files.
	KindResolved Kind = iota
	// KindPlaceholder is a static first-page seed whose files are not known yet.
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindPlaceholder:
		return "placeholder"
	default:
		return "resolved"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "resolved":
		*k = KindResolved
	case "placeholder":
		*k = KindPlaceholder
	default:
		return fmt.Errorf("unknown record kind %q", string(b))
	}
	return nil
}

// File describes one downloadable artifact of a repository.
type File struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size,omitempty"` // 0 when unknown
	SHA256       string `json:"sha256,omitempty"`
	Quantization string `json:"quantization,omitempty"`
	DownloadURL  string `json:"downloadUrl"`
}

// Record is a sanitized description of one discoverable model.
type Record struct {
	Kind           Kind       `json:"kind,omitempty"`
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Author         string     `json:"author"`
	Description    string     `json:"description,omitempty"`
	License        string     `json:"license,omitempty"`
	PipelineTag    string     `json:"pipelineTag,omitempty"`
	Library        string     `json:"library,omitempty"`
	Languages      []string   `json:"languages"`
	Downloads      int64      `json:"downloads"`
	Likes          int64      `json:"likes"`
	Tags           []string   `json:"tags"`
	Architectures  []string   `json:"architectures"`
	Quantizations  []string   `json:"quantizations"`
	Files          []File     `json:"files"`
	LastModified   *time.Time `json:"lastModified,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	ParameterCount string     `json:"parameterCount,omitempty"`
	ContextLength  int        `json:"contextLength,omitempty"`
}

// IsPlaceholder reports whether r is a static first-page seed.
func (r Record) IsPlaceholder() bool {
	return r.Kind == KindPlaceholder
}

// PrimaryFile returns the smallest file with a known positive size, or the
// first file when no size is known.
func (r Record) PrimaryFile() (File, bool) {
	if len(r.Files) == 0 {
		return File{}, false
	}
	best := -1
	for i, f := range r.Files {
		if f.Size <= 0 {
			continue
		}
		if best < 0 || f.Size < r.Files[best].Size {
			best = i
		}
	}
	if best < 0 {
		return r.Files[0], true
	}
	return r.Files[best], true
}

// Raw returns the canonical untrusted form of r. Sanitize(r.Raw()) yields r.
func (r Record) Raw() Raw {
	b, err := json.Marshal(r)
	if err != nil {
		return Raw{}
	}
	var out Raw
	if err := json.Unmarshal(b, &out); err != nil {
		return Raw{}
	}
	return out
}
