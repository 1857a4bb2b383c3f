package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/config"
)

func TestNewClientProviders(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	c, err := NewClient(ctx, config.LLMConfig{Provider: "OpenAI", Model: "gpt-4o-mini", APIKey: "k"}, log)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "llama3.1"}, log)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "claude", Model: "claude-3-5-haiku-latest", APIKey: "k"}, log)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	_, err = NewClient(ctx, config.LLMConfig{Provider: "mystery"}, log)
	assert.Error(t, err)
}

func TestNewClaudeClientDefaultsMaxTokens(t *testing.T) {
	c := NewClaudeClient("k", "m", "", 0)
	assert.Equal(t, 2048, c.maxTokens)
}
