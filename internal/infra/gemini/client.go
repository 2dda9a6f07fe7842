package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"live-translator/internal/domain"
	"live-translator/internal/infra"
)

// Client translates through the Gemini API using the genai SDK.
type Client struct {
	client  *genai.Client
	model   string
	backoff infra.Backoff
}

func NewClient(ctx context.Context, apiKey, model string, backoff infra.Backoff) (*Client, error) {
	return NewClientWithURL(ctx, apiKey, model, "", backoff)
}

func NewClientWithURL(ctx context.Context, apiKey, model, baseURL string, backoff infra.Backoff) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini backend requires api_key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		backoff: backoff,
	}, nil
}

func (c *Client) Name() string {
	return "gemini"
}

func (c *Client) TranslateText(ctx context.Context, text string, source, target domain.Language) (string, error) {
	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				genai.NewPartFromText(infra.TranslationPrompt(source, target)),
			},
		},
		Temperature: &temperature,
	}
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	retryErr := c.backoff.Do(ctx, func() error {
		var err error
		resp, err = c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return classify(err)
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}

	translation := infra.CleanCompletion(sb.String())
	if translation == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return translation, nil
}

// classify routes API errors through the shared status policy so that bad
// requests and auth failures are not retried.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return infra.StatusError("gemini", apiErr.Code, []byte(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return infra.StatusError("gemini", apiErrPtr.Code, []byte(apiErrPtr.Message))
	}
	return fmt.Errorf("generating content: %w", err)
}
