package application

import "context"

// Speaker turns text into audible speech. A new Speak supersedes whatever
// is still playing.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// NoopSpeaker is used when the platform has no speech output.
type NoopSpeaker struct{}

func (n *NoopSpeaker) Speak(_ context.Context, _, _ string) error {
	return nil
}
