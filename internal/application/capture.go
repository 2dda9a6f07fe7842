package application

import (
	"context"

	"live-translator/internal/domain"
)

type CaptureOptions struct {
	Continuous bool
	Language   string
}

// Capture is the speech-capture capability. Stop returns only after the
// capability acknowledged that it stopped listening, and Start discards
// signal updates left over from a previous session.
type Capture interface {
	Start(ctx context.Context, opts CaptureOptions) error
	Stop(ctx context.Context) error
	Signal() <-chan domain.Transcript
	Name() string
}
