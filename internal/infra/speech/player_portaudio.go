//go:build portaudio
// +build portaudio

package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioPlayer writes samples to the default output device.
type PortAudioPlayer struct {
	logger *slog.Logger
	mu     sync.Mutex
}

func NewPortAudioPlayer(logger *slog.Logger) (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &PortAudioPlayer{logger: logger}, nil
}

func (p *PortAudioPlayer) Play(ctx context.Context, samples []int16, sampleRate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("opening output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting output stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(samples); pos += framesPerBuffer {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[pos:])
		clear(buffer[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing to stream: %w", err)
		}
	}

	p.logger.Debug("playback finished", "samples", len(samples), "sample_rate", sampleRate)
	return nil
}

func (p *PortAudioPlayer) Close() error {
	return portaudio.Terminate()
}
