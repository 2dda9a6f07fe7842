package backends

import (
	"context"
	"fmt"

	"live-translator/config"
	"live-translator/internal/application"
	"live-translator/internal/infra"
	"live-translator/internal/infra/anthropic"
	"live-translator/internal/infra/gemini"
	"live-translator/internal/infra/googletranslate"
	"live-translator/internal/infra/openai"
)

// New builds the translation backend selected in the relay config.
func New(ctx context.Context, cfg config.RelayConfig) (application.TextTranslator, error) {
	backoff := infra.Backoff{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   2.0,
	}
	settings := cfg.BackendSettings()

	switch cfg.Backend {
	case "google":
		if settings.BaseURL != "" {
			return googletranslate.NewClientWithURL(settings.APIKey, settings.BaseURL, backoff), nil
		}
		return googletranslate.NewClient(settings.APIKey, backoff), nil
	case "gemini":
		client, err := gemini.NewClientWithURL(ctx, settings.APIKey, settings.Model, settings.BaseURL, backoff)
		if err != nil {
			return nil, fmt.Errorf("creating gemini backend: %w", err)
		}
		return client, nil
	case "anthropic":
		if settings.BaseURL != "" {
			return anthropic.NewClaudeClientWithURL(settings.APIKey, settings.Model, settings.BaseURL, backoff), nil
		}
		return anthropic.NewClaudeClient(settings.APIKey, settings.Model, backoff), nil
	case "openai":
		if settings.BaseURL != "" {
			return openai.NewChatClientWithURL(settings.APIKey, settings.Model, settings.BaseURL, backoff), nil
		}
		return openai.NewChatClient(settings.APIKey, settings.Model, backoff), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
