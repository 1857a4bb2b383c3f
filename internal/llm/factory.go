package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/config"
)

func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)

	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case "ollama":
		logger.Info("Initializing Ollama via OpenAI-compatible API",
			zap.String("base_url", cfg.BaseURL), zap.String("model", cfg.Model))
		return NewOllamaClient(cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
