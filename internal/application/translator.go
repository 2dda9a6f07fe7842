package application

import (
	"context"

	"live-translator/internal/domain"
)

// Translator translates a single sentence for the pipeline.
type Translator interface {
	Translate(ctx context.Context, sentence string, source, target domain.Language) (domain.TranslationResult, error)
}

// TextTranslator is implemented by the backends behind the relay.
type TextTranslator interface {
	TranslateText(ctx context.Context, text string, source, target domain.Language) (string, error)
	Name() string
}
