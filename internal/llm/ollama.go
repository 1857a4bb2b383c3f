package llm

import (
	"fmt"
	"strings"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// NewOllamaClient talks to Ollama through its OpenAI-compatible /v1 API.
// Ollama ignores the API key but the client requires one.
func NewOllamaClient(model, baseURL string, maxTokens int) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
	}
	return NewOpenAIClient("ollama", model, baseURL, maxTokens)
}
