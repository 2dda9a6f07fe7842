//go:build !portaudio
// +build !portaudio

package speech

import (
	"context"
	"fmt"
	"log/slog"

	"live-translator/internal/domain"
)

// PortAudioPlayer stub when portaudio is not available
type PortAudioPlayer struct{}

func NewPortAudioPlayer(_ *slog.Logger) (*PortAudioPlayer, error) {
	return nil, fmt.Errorf("%w: portaudio player not available: rebuild with -tags portaudio", domain.ErrPlaybackUnavailable)
}

func (p *PortAudioPlayer) Play(_ context.Context, _ []int16, _ float64) error {
	return domain.ErrPlaybackUnavailable
}

func (p *PortAudioPlayer) Close() error {
	return nil
}
