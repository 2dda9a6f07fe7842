package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra"
)

// ChatClient translates through the chat completions endpoint.
type ChatClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	backoff    infra.Backoff
}

func NewChatClient(apiKey, model string, backoff infra.Backoff) *ChatClient {
	return NewChatClientWithURL(apiKey, model, "https://api.openai.com/v1", backoff)
}

func NewChatClientWithURL(apiKey, model, baseURL string, backoff infra.Backoff) *ChatClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChatClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		backoff:    backoff,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Name() string {
	return "openai"
}

func (c *ChatClient) TranslateText(ctx context.Context, text string, source, target domain.Language) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai backend requires api_key")
	}

	bodyBytes, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: infra.TranslationPrompt(source, target)},
			{Role: "user", Content: text},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var result chatResponse
	retryErr := c.backoff.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return infra.StatusError("openai", resp.StatusCode, respBody)
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return infra.Permanent(fmt.Errorf("decoding response: %w", err))
		}

		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	translation := infra.CleanCompletion(result.Choices[0].Message.Content)
	if translation == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return translation, nil
}
