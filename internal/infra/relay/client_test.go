package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra/relay"
)

func TestClient_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/translate" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		want := map[string]any{"text": "今天天气很好", "source": "zh", "target": "en"}
		if len(body) != len(want) {
			t.Errorf("body keys: got %v, want %v", body, want)
		}
		for k, v := range want {
			if body[k] != v {
				t.Errorf("body[%s]: got %v, want %v", k, body[k], v)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"translation": "The weather is nice today"})
	}))
	defer server.Close()

	client := relay.NewClient(server.URL+"/", time.Second)

	result, err := client.Translate(context.Background(), "今天天气很好", domain.LanguageChinese, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if result.SourceSentence != "今天天气很好" {
		t.Errorf("SourceSentence: got %q", result.SourceSentence)
	}
	if result.TranslatedText != "The weather is nice today" {
		t.Errorf("TranslatedText: got %q", result.TranslatedText)
	}
}

func TestClient_RemoteFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "relay error body",
			status:  http.StatusInternalServerError,
			body:    `{"error":"Translation failed"}`,
			wantMsg: "Translation failed",
		},
		{
			name:    "non json error",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			wantMsg: "Bad Gateway",
		},
		{
			name:    "empty translation",
			status:  http.StatusOK,
			body:    `{"translation":""}`,
			wantMsg: "empty translation",
		},
		{
			name:    "malformed success body",
			status:  http.StatusOK,
			body:    `{"translation":`,
			wantMsg: "decoding response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := relay.NewClient(server.URL, time.Second)
			_, err := client.Translate(context.Background(), "hello", domain.LanguageEnglish, domain.LanguageChinese)
			if !errors.Is(err, domain.ErrTranslationRemote) {
				t.Fatalf("error: got %v, want ErrTranslationRemote", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error message %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := relay.NewClient(url, time.Second)
	_, err := client.Translate(context.Background(), "hello", domain.LanguageEnglish, domain.LanguageChinese)
	if !errors.Is(err, domain.ErrTranslationTransport) {
		t.Fatalf("error: got %v, want ErrTranslationTransport", err)
	}
}

func TestClient_DoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"busy"}`))
	}))
	defer server.Close()

	client := relay.NewClient(server.URL, time.Second)
	if _, err := client.Translate(context.Background(), "hello", domain.LanguageEnglish, domain.LanguageChinese); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("requests: got %d, want 1", n)
	}
}

func TestClient_RejectsInvalidInput(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := relay.NewClient(server.URL, time.Second)

	if _, err := client.Translate(context.Background(), "  ", domain.LanguageEnglish, domain.LanguageChinese); err == nil {
		t.Error("expected error for empty sentence")
	}
	if _, err := client.Translate(context.Background(), "bonjour", domain.Language("fr"), domain.LanguageEnglish); err == nil {
		t.Error("expected error for unsupported language")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("requests for invalid input: got %d, want 0", n)
	}
}
