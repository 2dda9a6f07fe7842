package domain

// Transcript is one update of the capture signal. Text is everything the
// capture capability transcribed since it was started.
type Transcript struct {
	Text      string
	Listening bool
}

type TranslationResult struct {
	SourceSentence string
	TranslatedText string
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
)

// Display is the state published to the user interface.
type Display struct {
	Status          Status `json:"status"`
	StatusText      string `json:"statusText"`
	Direction       string `json:"direction"`
	Transcript      string `json:"transcript"`
	CurrentSentence string `json:"currentSentence"`
	TranslatedText  string `json:"translatedText"`
	Error           string `json:"error,omitempty"`
	Translating     bool   `json:"translating"`
}

func StatusText(s Status) string {
	if s == StatusListening {
		return "Listening..."
	}
	return "Mic is off"
}
