package capture

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"live-translator/internal/application"
	"live-translator/internal/domain"
)

// ScriptCapture replays a text file as if it were being spoken: every
// interval one more line is appended to the transcript.
type ScriptCapture struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	signal   chan domain.Transcript

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScriptCapture(path string, interval time.Duration, logger *slog.Logger) *ScriptCapture {
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &ScriptCapture{
		path:     path,
		interval: interval,
		logger:   logger,
		signal:   make(chan domain.Transcript, 1),
	}
}

func (s *ScriptCapture) Name() string {
	return "script"
}

func (s *ScriptCapture) Signal() <-chan domain.Transcript {
	return s.signal
}

func (s *ScriptCapture) Start(_ context.Context, opts application.CaptureOptions) error {
	lines, err := readScript(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("script capture already running")
	}

	drain(s.signal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.replay(ctx, done, lines, opts)
	return nil
}

func (s *ScriptCapture) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for script replay to stop: %w", ctx.Err())
	}
}

func (s *ScriptCapture) replay(ctx context.Context, done chan struct{}, lines []string, opts application.CaptureOptions) {
	defer close(done)

	s.logger.Info("replaying script", "path", s.path, "lines", len(lines), "language", opts.Language)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var transcript strings.Builder
	for i, line := range lines {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if transcript.Len() > 0 && !endsWithCJK(transcript.String()) {
			transcript.WriteByte(' ')
		}
		transcript.WriteString(line)

		select {
		case <-s.signal:
		default:
		}
		select {
		case s.signal <- domain.Transcript{Text: transcript.String(), Listening: true}:
		case <-ctx.Done():
			return
		}

		if !opts.Continuous && i == 0 {
			return
		}
	}
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("script %s has no lines", path)
	}
	return lines, nil
}

func endsWithCJK(s string) bool {
	r := []rune(s)
	if len(r) == 0 {
		return false
	}
	last := r[len(r)-1]
	return last >= 0x3000 && last <= 0x9fff || last >= 0xff00 && last <= 0xffef
}
