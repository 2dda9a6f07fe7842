package infra

import (
	"fmt"
	"strings"

	"live-translator/internal/domain"
)

func languageName(l domain.Language) string {
	switch l {
	case domain.LanguageChinese:
		return "Simplified Chinese"
	case domain.LanguageEnglish:
		return "English"
	default:
		return string(l)
	}
}

// TranslationPrompt is the system prompt shared by the LLM backends.
func TranslationPrompt(source, target domain.Language) string {
	return fmt.Sprintf(`You are a real-time interpreter. Translate the user's message from %s to %s.
The message is a single sentence transcribed from live speech and may contain recognition noise.
Respond ONLY with the translation: no quotes, no explanations, no markdown.`,
		languageName(source), languageName(target))
}

// CleanCompletion strips the wrapping models sometimes add around a reply.
func CleanCompletion(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}
