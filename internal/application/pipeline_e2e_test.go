package application_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra/capture"
	"live-translator/internal/infra/relay"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []translateCall
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) TranslateText(_ context.Context, text string, source, target domain.Language) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, translateCall{text: text, source: source, target: target})
	f.mu.Unlock()
	if text == "今天天气很好" {
		return "The weather is nice today", nil
	}
	return "?", nil
}

func TestPipeline_EndToEndThroughRelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &fakeBackend{}
	server := httptest.NewServer(relay.NewServer(":0", backend, 0, logger).Handler())
	defer server.Close()

	mic := newMockCapture()
	speaker := &recordingSpeaker{}
	p := runPipeline(t, mic, relay.NewClient(server.URL, 2*time.Second), speaker, testConfig())
	startListening(t, p)

	mic.emit("你好。今天天气很好")

	waitFor(t, "speech output", func() bool { return len(speaker.all()) == 1 })

	backend.mu.Lock()
	calls := append([]translateCall(nil), backend.calls...)
	backend.mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("backend calls: got %d, want 1", len(calls))
	}
	want := translateCall{text: "今天天气很好", source: domain.LanguageChinese, target: domain.LanguageEnglish}
	if calls[0] != want {
		t.Errorf("backend call: got %+v, want %+v", calls[0], want)
	}

	display := p.Snapshot()
	if display.CurrentSentence != "今天天气很好" {
		t.Errorf("currentSentence: got %q", display.CurrentSentence)
	}
	if display.TranslatedText != "The weather is nice today" {
		t.Errorf("translatedText: got %q", display.TranslatedText)
	}
	if display.Error != "" || display.Status != domain.StatusListening {
		t.Errorf("display: got %+v", display)
	}

	got := speaker.all()[0]
	if got.text != "The weather is nice today" || got.language != "en-US" {
		t.Errorf("speak: got %+v, want (The weather is nice today, en-US)", got)
	}
}

func TestPipeline_RelayFailureSurfacesError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(relay.NewServer(":0", &failingBackend{}, 0, logger).Handler())
	defer server.Close()

	mic := newMockCapture()
	p := runPipeline(t, mic, relay.NewClient(server.URL, 2*time.Second), &recordingSpeaker{}, testConfig())
	startListening(t, p)

	mic.emit("Good morning.")

	waitFor(t, "error display", func() bool { return p.Snapshot().Error != "" })

	display := p.Snapshot()
	if display.Status != domain.StatusListening {
		t.Errorf("status: got %s, want listening", display.Status)
	}
	if display.Translating {
		t.Error("translating flag should be cleared after failure")
	}
}

type failingBackend struct{}

func (f *failingBackend) Name() string { return "failing" }

func (f *failingBackend) TranslateText(_ context.Context, _ string, _, _ domain.Language) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func TestPipeline_ScriptReplayThroughRelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(relay.NewServer(":0", &fakeBackend{}, 0, logger).Handler())
	defer server.Close()

	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte("你好。\n今天天气很好\n"), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	source := capture.NewScriptCapture(path, 10*time.Millisecond, logger)
	speaker := &recordingSpeaker{}
	p := runPipeline(t, source, relay.NewClient(server.URL, 2*time.Second), speaker, testConfig())
	startListening(t, p)

	waitFor(t, "final translation", func() bool {
		return p.Snapshot().TranslatedText == "The weather is nice today"
	})

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stopping pipeline: %v", err)
	}
	if p.Snapshot().Status != domain.StatusIdle {
		t.Errorf("status: got %s, want idle", p.Snapshot().Status)
	}
}
