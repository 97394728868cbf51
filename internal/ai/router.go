package ai

import (
	"context"
	"fmt"

	"ragchat/internal/compat"
)

// Router dispatches generation requests to the endpoint hosting the
// requested chat model: OpenAI-hosted models go to the OpenAI-compatible API,
// locally-hosted models go to the Ollama endpoint. Both speak the same wire
// format, so one client serves both.
type Router struct {
	client *OpenAICompatibleClient
	openai ChatConfig
	ollama ChatConfig
}

func NewRouter(client *OpenAICompatibleClient, openai, ollama ChatConfig) *Router {
	return &Router{client: client, openai: openai, ollama: ollama}
}

func (r *Router) Complete(ctx context.Context, chatModel string, messages []ChatMessage) (string, error) {
	provider, err := compat.ProviderFor(chatModel)
	if err != nil {
		return "", err
	}

	var cfg ChatConfig
	switch provider {
	case compat.ProviderOpenAI:
		cfg = r.openai
	case compat.ProviderOllama:
		cfg = r.ollama
	default:
		return "", fmt.Errorf("no endpoint for provider %q", provider)
	}
	return r.client.Complete(ctx, cfg, chatModel, messages)
}
