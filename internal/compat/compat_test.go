package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairingTableIsBidirectional(t *testing.T) {
	for _, emb := range EmbeddingModels() {
		chat, err := ChatModelFor(emb)
		require.NoError(t, err)

		back, err := EmbeddingModelFor(chat)
		require.NoError(t, err)
		assert.Equal(t, emb, back, "round trip for %s", emb)
	}
}

func TestChatModelFor(t *testing.T) {
	t.Run("openai pairing", func(t *testing.T) {
		chat, err := ChatModelFor("text-embedding-3-small")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", chat)
	})

	t.Run("local pairing", func(t *testing.T) {
		chat, err := ChatModelFor("llama3.2:1b")
		require.NoError(t, err)
		assert.Equal(t, "llama3.2:latest", chat)
	})

	t.Run("unknown model fails loud", func(t *testing.T) {
		_, err := ChatModelFor("text-embedding-3-large")
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestCompatiblePair(t *testing.T) {
	ok, err := CompatiblePair("gpt-4o-mini", "text-embedding-3-small")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompatiblePair("gpt-4o-mini", "gemma2:2b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CompatiblePair("gpt-5", "text-embedding-3-small")
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	_, err = CompatiblePair("gpt-4o-mini", "made-up-embedding")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestChunkingStrategyFor(t *testing.T) {
	strategy, err := ChunkingStrategyFor("text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, ChunkingSemanticPercentile, strategy)

	strategy, err = ChunkingStrategyFor("gemma2:2b")
	require.NoError(t, err)
	assert.Equal(t, ChunkingRecursive, strategy)

	_, err = ChunkingStrategyFor("unknown")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestProviderFor(t *testing.T) {
	provider, err := ProviderFor("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider)

	provider, err = ProviderFor("deepseek-r1:latest")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, provider)

	_, err = ProviderFor("")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
