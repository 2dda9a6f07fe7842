package speech_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra/speech"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTTS writes a shell script that logs its arguments and then runs tail.
func fakeTTS(t *testing.T, tail string) (binary, logPath string) {
	t.Helper()
	dir := t.TempDir()
	logPath = filepath.Join(dir, "calls.log")
	binary = filepath.Join(dir, "fake-tts")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\n" + tail + "\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake tts: %v", err)
	}
	return binary, logPath
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func waitCalls(t *testing.T, path string, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := readCalls(t, path); len(calls) >= n {
			return calls
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("fake tts was not called %d times", n)
	return nil
}

func TestCommandSpeaker_UsesVoiceForLanguage(t *testing.T) {
	bin, logPath := fakeTTS(t, "exit 0")
	s, err := speech.NewCommandSpeaker(speech.EngineEspeak, bin, nil, nil, testLogger())
	if err != nil {
		t.Fatalf("NewCommandSpeaker error: %v", err)
	}
	defer s.Close()

	if err := s.Speak(context.Background(), "The weather is nice today", "en-US"); err != nil {
		t.Fatalf("Speak error: %v", err)
	}

	calls := waitCalls(t, logPath, 1)
	if calls[0] != "-v en-us The weather is nice today" {
		t.Errorf("args: got %q", calls[0])
	}
}

func TestCommandSpeaker_InterruptsPrevious(t *testing.T) {
	bin, logPath := fakeTTS(t, "exec sleep 5")
	s, err := speech.NewCommandSpeaker(speech.EngineSay, bin, map[string]string{"zh-CN": "Meijia"}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewCommandSpeaker error: %v", err)
	}

	ctx := context.Background()
	s.Speak(ctx, "first", "en-US")
	waitCalls(t, logPath, 1)

	start := time.Now()
	if err := s.Speak(ctx, "你好", "zh-CN"); err != nil {
		t.Fatalf("Speak error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("second Speak waited %v for the first utterance", elapsed)
	}

	calls := waitCalls(t, logPath, 2)
	if calls[1] != "-v Meijia 你好" {
		t.Errorf("args: got %q", calls[1])
	}

	start = time.Now()
	s.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Close waited %v", elapsed)
	}
}

func TestCommandSpeaker_MissingBinary(t *testing.T) {
	s, err := speech.NewCommandSpeaker(speech.EngineEspeak, filepath.Join(t.TempDir(), "espeak-ng"), nil, nil, testLogger())
	if err != nil {
		t.Fatalf("NewCommandSpeaker error: %v", err)
	}

	err = s.Speak(context.Background(), "hello", "en-US")
	if !errors.Is(err, domain.ErrPlaybackUnavailable) {
		t.Errorf("error: got %v, want ErrPlaybackUnavailable", err)
	}
}

func TestNewCommandSpeaker_Validation(t *testing.T) {
	if _, err := speech.NewCommandSpeaker("festival", "", nil, nil, testLogger()); err == nil {
		t.Error("expected error for unknown engine")
	}
	if _, err := speech.NewCommandSpeaker(speech.EngineSay, "", nil, &recordingPlayer{}, testLogger()); err == nil {
		t.Error("expected error for say with a player")
	}
}

type recordingPlayer struct {
	mu         sync.Mutex
	samples    []int16
	sampleRate float64
	played     chan struct{}
}

func (r *recordingPlayer) Play(_ context.Context, samples []int16, sampleRate float64) error {
	r.mu.Lock()
	r.samples = samples
	r.sampleRate = sampleRate
	r.mu.Unlock()
	close(r.played)
	return nil
}

func TestCommandSpeaker_PlaysSynthesizedWAV(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "out.wav")
	if err := os.WriteFile(wavPath, encodeWAV([]int16{100, -100, 200}, 22050, 1), 0o644); err != nil {
		t.Fatalf("writing wav: %v", err)
	}
	bin, logPath := fakeTTS(t, "cat "+wavPath)

	player := &recordingPlayer{played: make(chan struct{})}
	s, err := speech.NewCommandSpeaker(speech.EngineEspeak, bin, nil, player, testLogger())
	if err != nil {
		t.Fatalf("NewCommandSpeaker error: %v", err)
	}
	defer s.Close()

	s.Speak(context.Background(), "早上好", "zh-CN")

	select {
	case <-player.played:
	case <-time.After(2 * time.Second):
		t.Fatal("player was not called")
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.samples) != 3 || player.samples[1] != -100 || player.sampleRate != 22050 {
		t.Errorf("played %v at %v", player.samples, player.sampleRate)
	}
	if calls := readCalls(t, logPath); calls[0] != "--stdout -v cmn 早上好" {
		t.Errorf("args: got %q", calls[0])
	}
}

func encodeWAV(samples []int16, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	dataSize := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(channels))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate*2*channels))
	binary.Write(&buf, binary.LittleEndian, int16(2*channels))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))
	for _, sample := range samples {
		binary.Write(&buf, binary.LittleEndian, sample)
	}
	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	t.Run("stereo downmix", func(t *testing.T) {
		samples, rate, err := speech.DecodeWAV(encodeWAV([]int16{100, 300, -50, -150}, 16000, 2))
		if err != nil {
			t.Fatalf("DecodeWAV error: %v", err)
		}
		if rate != 16000 || len(samples) != 2 || samples[0] != 200 || samples[1] != -100 {
			t.Errorf("got %v at %v", samples, rate)
		}
	})

	t.Run("streamed sizes", func(t *testing.T) {
		data := encodeWAV([]int16{1, 2, 3, 4}, 22050, 1)
		copy(data[40:44], []byte{0xff, 0xff, 0xff, 0xff})
		samples, _, err := speech.DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV error: %v", err)
		}
		if len(samples) != 4 {
			t.Errorf("samples: got %d, want 4", len(samples))
		}
	})

	t.Run("not a wav", func(t *testing.T) {
		if _, _, err := speech.DecodeWAV([]byte("hello world, definitely not audio")); err == nil {
			t.Error("expected error")
		}
	})
}
