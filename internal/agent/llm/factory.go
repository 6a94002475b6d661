// Package llm builds the chat model backing the relay.
package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/flowsmith/server/internal/agent/model"
	logx "github.com/flowsmith/server/pkg/logger"
)

// New returns the chat model selected by cfg.Provider.
func New(ctx context.Context, cfg model.AgentConfig) (einomodel.BaseChatModel, error) {
	temp := cfg.Temperature
	maxTokens := cfg.MaxTokens

	var (
		cm  einomodel.BaseChatModel
		err error
	)
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case model.ProviderCompletions, "":
		cm, err = NewCompletionsModel(CompletionsConfig{
			BaseURL:         cfg.BaseURL,
			APIKey:          cfg.APIKey,
			Model:           cfg.ModelName(),
			KnowledgeBaseID: cfg.KnowledgeBaseID,
			Temperature:     &temp,
			MaxTokens:       &maxTokens,
			Timeout:         cfg.Timeout,
		})
	case model.ProviderGemini:
		cm, err = NewGeminiModel(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   &maxTokens,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("provider", cfg.Provider).
		Str("model", ModelName(cfg)).
		Str("api_key", logx.Redact(cfg.APIKey)).
		Msg("Chat model created")
	return cm, nil
}

// ModelName reports the model the configured provider will call.
func ModelName(cfg model.AgentConfig) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), model.ProviderGemini) && cfg.Model == "" {
		return DefaultGeminiModel
	}
	return cfg.ModelName()
}
