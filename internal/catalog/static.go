package catalog

import "github.com/oxide-lab/discover/internal/model"

// firstPage lists well known GGUF repositories shown before the catalog has
// answered. Their files are not known until a live search resolves them.
var firstPage = []struct {
	id, params, arch, pipeline string
}{
	{"bartowski/Meta-Llama-3.1-8B-Instruct-GGUF", "8B", "llama", "text-generation"},
	{"Qwen/Qwen2.5-7B-Instruct-GGUF", "7B", "qwen2", "text-generation"},
	{"bartowski/Mistral-7B-Instruct-v0.3-GGUF", "7B", "mistral", "text-generation"},
	{"microsoft/Phi-3-mini-4k-instruct-gguf", "3.8B", "phi3", "text-generation"},
	{"bartowski/gemma-2-2b-it-GGUF", "2B", "gemma2", "text-generation"},
	{"Qwen/Qwen2.5-1.5B-Instruct-GGUF", "1.5B", "qwen2", "text-generation"},
	{"TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF", "1.1B", "llama", "text-generation"},
	{"HuggingFaceTB/SmolLM2-360M-Instruct-GGUF", "360M", "llama", "text-generation"},
}

// StaticFirstPage returns the placeholder seed records.
func StaticFirstPage() []model.Raw {
	out := make([]model.Raw, 0, len(firstPage))
	for _, s := range firstPage {
		out = append(out, model.Raw{
			"id":             s.id,
			"kind":           model.KindPlaceholder.String(),
			"parameterCount": s.params,
			"architectures":  []any{s.arch},
			"pipelineTag":    s.pipeline,
			"tags":           []any{"gguf"},
		})
	}
	return out
}
