package relay

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
)

// Client calls the relay's translate endpoint. It never retries: one
// sentence is one request.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translation string `json:"translation,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (c *Client) Translate(ctx context.Context, sentence string, source, target domain.Language) (domain.TranslationResult, error) {
	if strings.TrimSpace(sentence) == "" {
		return domain.TranslationResult{}, fmt.Errorf("empty sentence")
	}
	if !domain.ValidLanguage(source) || !domain.ValidLanguage(target) {
		return domain.TranslationResult{}, fmt.Errorf("unsupported language pair %s->%s", source, target)
	}

	body, err := json.Marshal(translateRequest{
		Text:   sentence,
		Source: string(source),
		Target: string(target),
	})
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/translate", bytes.NewReader(body))
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("%w: sending request: %w", domain.ErrTranslationTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("%w: reading response: %w", domain.ErrTranslationTransport, err)
	}

	var result translateResponse
	decodeErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := result.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.TranslationResult{}, fmt.Errorf("%w: relay returned %d: %s", domain.ErrTranslationRemote, resp.StatusCode, msg)
	}

	if decodeErr != nil {
		return domain.TranslationResult{}, fmt.Errorf("%w: decoding response: %w", domain.ErrTranslationRemote, decodeErr)
	}
	if result.Translation == "" {
		return domain.TranslationResult{}, fmt.Errorf("%w: empty translation", domain.ErrTranslationRemote)
	}

	return domain.TranslationResult{
		SourceSentence: sentence,
		TranslatedText: result.Translation,
	}, nil
}
