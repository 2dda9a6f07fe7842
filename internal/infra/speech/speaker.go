package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"live-translator/internal/domain"
)

type Engine string

const (
	EngineEspeak Engine = "espeak"
	EngineSay    Engine = "say"
)

// Player renders decoded PCM audio. Play returns when the audio finished
// or ctx was cancelled.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate float64) error
}

func DefaultVoices(engine Engine) map[string]string {
	if engine == EngineSay {
		return map[string]string{"en-US": "Samantha", "zh-CN": "Tingting"}
	}
	return map[string]string{"en-US": "en-us", "zh-CN": "cmn"}
}

func defaultBinary(engine Engine) string {
	if engine == EngineSay {
		return "say"
	}
	return "espeak-ng"
}

// CommandSpeaker speaks through a local TTS program. Each Speak interrupts
// the utterance still playing.
type CommandSpeaker struct {
	engine Engine
	binary string
	voices map[string]string
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommandSpeaker builds a speaker. With a nil player the TTS program
// plays the audio itself; otherwise its WAV output is handed to the player.
func NewCommandSpeaker(engine Engine, binary string, voices map[string]string, player Player, logger *slog.Logger) (*CommandSpeaker, error) {
	if engine != EngineEspeak && engine != EngineSay {
		return nil, fmt.Errorf("unsupported speech engine %q", engine)
	}
	if player != nil && engine != EngineEspeak {
		return nil, fmt.Errorf("engine %q cannot write audio for a player", engine)
	}
	if binary == "" {
		binary = defaultBinary(engine)
	}
	merged := DefaultVoices(engine)
	for lang, voice := range voices {
		merged[lang] = voice
	}
	return &CommandSpeaker{
		engine: engine,
		binary: binary,
		voices: merged,
		player: player,
		logger: logger,
	}, nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, language string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	path, err := exec.LookPath(s.binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrPlaybackUnavailable, s.binary, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	args := s.args(text, language)
	go func() {
		defer close(done)
		defer cancel()
		if err := s.play(playCtx, path, args); err != nil && playCtx.Err() == nil {
			s.logger.Warn("speech playback failed", "engine", s.engine, "language", language, "error", err)
		}
	}()
	return nil
}

// Close stops any utterance in progress.
func (s *CommandSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()
	return nil
}

func (s *CommandSpeaker) interruptLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *CommandSpeaker) args(text, language string) []string {
	var args []string
	if s.player != nil {
		args = append(args, "--stdout")
	}
	if voice, ok := s.voices[language]; ok && voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, text)
}

func (s *CommandSpeaker) play(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	if s.player == nil {
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("running %s: %w", s.binary, err)
		}
		return nil
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("synthesizing with %s: %w (%s)", s.binary, err, strings.TrimSpace(stderr.String()))
	}

	samples, sampleRate, err := DecodeWAV(out)
	if err != nil {
		return fmt.Errorf("decoding synthesized audio: %w", err)
	}
	if err := s.player.Play(ctx, samples, sampleRate); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("playing audio: %w", err)
	}
	return nil
}
