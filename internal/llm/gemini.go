package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiClient(ctx context.Context, apiKey string, model string, maxTokens int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.ResponseMIMEType = "application/json"
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.maxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}

	return "", fmt.Errorf("no response candidates or content")
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
