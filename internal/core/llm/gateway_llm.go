package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// GatewayLLM talks to any OpenAI-compatible /chat/completions endpoint.
type GatewayLLM struct {
	client    *openai.Client
	modelName string
}

func NewGatewayLLM(baseURL, apiKey, modelName string) *GatewayLLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &GatewayLLM{client: openai.NewClientWithConfig(cfg), modelName: modelName}
}

func (g *GatewayLLM) Complete(ctx context.Context, messages []models.PromptMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.modelName,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", gatewayError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("AI Gateway error: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// gatewayError reduces a client error to the status the gateway answered with.
func gatewayError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("AI Gateway error: %d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("AI Gateway error: %d", reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("AI Gateway error: %w", err)
}

var _ core.LLMProvider = (*GatewayLLM)(nil)
