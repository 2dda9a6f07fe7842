package domain

import "errors"

var (
	ErrCaptureUnsupported   = errors.New("speech capture is not supported on this platform")
	ErrCaptureLost          = errors.New("speech capture stopped unexpectedly")
	ErrTranslationTransport = errors.New("translation transport failure")
	ErrTranslationRemote    = errors.New("translation remote failure")
	ErrPlaybackUnavailable  = errors.New("speech output unavailable")
)

// TranslationFailedMessage is what the relay reports on any backend failure.
const TranslationFailedMessage = "Translation failed"
