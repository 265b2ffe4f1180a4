package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
)

// NewProvider builds the completion provider selected by LLM_PROVIDER.
func NewProvider(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGateway:
		return NewGatewayLLM(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.GenModel), nil
	case config.ProviderGemini:
		return NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel)
	case config.ProviderMock:
		slog.Warn("LLM_PROVIDER=mock, completions are generated locally")
		return NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.LLMProvider)
	}
}
