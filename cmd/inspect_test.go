package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oxide-lab/discover/internal/model"
)

func TestPrintInspect(t *testing.T) {
	r, ok := model.Sanitize(model.Raw{
		"id":             "TheBloke/Llama-2-7B-GGUF",
		"parameterCount": "7B",
		"license":        "llama2",
		"tags":           []any{"gguf", "en", "license:other"},
		"contextLength":  4096.0,
		"files": []any{
			map[string]any{"filename": "llama-2-7b.Q8_0.gguf", "quantization": "Q8_0", "size": float64(7 << 30), "downloadUrl": "u1"},
			map[string]any{"filename": "llama-2-7b.Q4_K_M.gguf", "quantization": "Q4_K_M", "size": float64(4 << 30), "downloadUrl": "u2"},
		},
	})
	if !ok {
		t.Fatal("sanitize rejected record")
	}

	var buf bytes.Buffer
	printInspect(&buf, r)
	out := buf.String()
	for _, want := range []string{
		"Model: TheBloke/Llama-2-7B-GGUF",
		"Author:   TheBloke",
		"Params:   7B",
		"llama2, other",
		"Languages: en",
		"Context:  4096 tokens",
		"* llama-2-7b.Q4_K_M.gguf",
		"Estimated VRAM (* file): 4.8G (small bucket)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
