package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewClaudeClient(apiKey string, model string, baseURL string, maxTokens int) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: system,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Text != nil {
			sb.WriteString(*part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response content")
	}
	return sb.String(), nil
}
