package llm

import (
	"context"
)

// LLMClient sends one system prompt and one user message and returns the
// raw completion text. Implementations should request JSON output when the
// backend supports it.
type LLMClient interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
