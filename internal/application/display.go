package application

import "live-translator/internal/domain"

type DisplaySink interface {
	Publish(display domain.Display)
}

type NoopDisplay struct{}

func (n *NoopDisplay) Publish(_ domain.Display) {}
