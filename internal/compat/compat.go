// Package compat holds the fixed pairing between chat models, embedding
// models, and chunking strategies. Embedding spaces from different models are
// not interchangeable, so a chat model may only consume passages retrieved
// with its paired embedding model. The table is closed: unknown model names
// fail with ErrUnsupportedModel instead of falling back to a default pairing.
package compat

import "errors"

var ErrUnsupportedModel = errors.New("unsupported model")

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	ChunkingSemanticPercentile = "semantic_percentile"
	ChunkingRecursive          = "recursive"
)

type pairing struct {
	ChatModel        string
	EmbeddingModel   string
	Provider         string
	ChunkingStrategy string
}

var pairings = []pairing{
	{ChatModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small", Provider: ProviderOpenAI, ChunkingStrategy: ChunkingSemanticPercentile},
	{ChatModel: "deepseek-r1:latest", EmbeddingModel: "deepseek-r1:latest", Provider: ProviderOllama, ChunkingStrategy: ChunkingRecursive},
	{ChatModel: "llama3.2:latest", EmbeddingModel: "llama3.2:1b", Provider: ProviderOllama, ChunkingStrategy: ChunkingRecursive},
	{ChatModel: "gemma2:latest", EmbeddingModel: "gemma2:2b", Provider: ProviderOllama, ChunkingStrategy: ChunkingRecursive},
}

// ChatModelFor returns the chat model paired with the given embedding model.
func ChatModelFor(embeddingModel string) (string, error) {
	for _, p := range pairings {
		if p.EmbeddingModel == embeddingModel {
			return p.ChatModel, nil
		}
	}
	return "", ErrUnsupportedModel
}

// EmbeddingModelFor returns the embedding model paired with the given chat model.
func EmbeddingModelFor(chatModel string) (string, error) {
	for _, p := range pairings {
		if p.ChatModel == chatModel {
			return p.EmbeddingModel, nil
		}
	}
	return "", ErrUnsupportedModel
}

// CompatiblePair reports whether chatModel is allowed to consume passages
// retrieved with embeddingModel. Both names must be known.
func CompatiblePair(chatModel, embeddingModel string) (bool, error) {
	paired, err := EmbeddingModelFor(chatModel)
	if err != nil {
		return false, err
	}
	if _, err := ChatModelFor(embeddingModel); err != nil {
		return false, err
	}
	return paired == embeddingModel, nil
}

// ChunkingStrategyFor returns the canonical chunking strategy for documents
// ingested with the given embedding model. This is policy, not computation.
func ChunkingStrategyFor(embeddingModel string) (string, error) {
	for _, p := range pairings {
		if p.EmbeddingModel == embeddingModel {
			return p.ChunkingStrategy, nil
		}
	}
	return "", ErrUnsupportedModel
}

// ProviderFor returns which backend hosts the given chat or embedding model.
func ProviderFor(modelName string) (string, error) {
	for _, p := range pairings {
		if p.ChatModel == modelName || p.EmbeddingModel == modelName {
			return p.Provider, nil
		}
	}
	return "", ErrUnsupportedModel
}

// EmbeddingModels returns every embedding model in the table, in table order.
func EmbeddingModels() []string {
	out := make([]string, 0, len(pairings))
	for _, p := range pairings {
		out = append(out, p.EmbeddingModel)
	}
	return out
}
