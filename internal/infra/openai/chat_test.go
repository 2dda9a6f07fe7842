package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra"
	"live-translator/internal/infra/openai"
)

func TestChatClient_TranslateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization: got %q", r.Header.Get("Authorization"))
		}

		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "今天天气很好" {
			t.Errorf("messages: got %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"\"The weather is nice today\""}}]}`))
	}))
	defer server.Close()

	backoff := infra.Backoff{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 2}
	client := openai.NewChatClientWithURL("test-key", "gpt-test", server.URL, backoff)

	got, err := client.TranslateText(context.Background(), "今天天气很好", domain.LanguageChinese, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("TranslateText error: %v", err)
	}
	if got != "The weather is nice today" {
		t.Errorf("translation: got %q", got)
	}
}

func TestChatClient_Unauthorized(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	backoff := infra.Backoff{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}
	client := openai.NewChatClientWithURL("test-key", "", server.URL, backoff)

	if _, err := client.TranslateText(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageChinese); err == nil {
		t.Fatal("expected error for 401")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
