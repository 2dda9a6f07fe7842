package googletranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra"
)

// Client talks to the Cloud Translation v2 REST API with an API key.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	backoff    infra.Backoff
}

func NewClient(apiKey string, backoff infra.Backoff) *Client {
	return NewClientWithURL(apiKey, "https://translation.googleapis.com/language/translate/v2", backoff)
}

func NewClientWithURL(apiKey, baseURL string, backoff infra.Backoff) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		backoff:    backoff,
	}
}

func (c *Client) Name() string {
	return "google"
}

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type response struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// languageCode maps our codes onto the ones the API documents.
func languageCode(l domain.Language) string {
	if l == domain.LanguageChinese {
		return "zh-CN"
	}
	return string(l)
}

func (c *Client) TranslateText(ctx context.Context, text string, source, target domain.Language) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("google translate api key not configured")
	}

	bodyBytes, err := json.Marshal(request{
		Q:      text,
		Source: languageCode(source),
		Target: languageCode(target),
		Format: "text",
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "?key=" + url.QueryEscape(c.apiKey)

	var result response
	retryErr := c.backoff.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return infra.StatusError("google translate", resp.StatusCode, respBody)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return infra.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	if len(result.Data.Translations) == 0 {
		return "", fmt.Errorf("empty response from google translate")
	}

	return html.UnescapeString(result.Data.Translations[0].TranslatedText), nil
}
