package domain

import (
	"fmt"
	"sync"
)

type Direction int

const (
	ChineseToEnglish Direction = iota
	EnglishToChinese
)

type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

// Languages is everything derived from a Direction.
type Languages struct {
	Source            Language
	Target            Language
	CaptureLanguage   string
	SynthesisLanguage string
}

func (d Direction) Languages() Languages {
	if d == EnglishToChinese {
		return Languages{
			Source:            LanguageEnglish,
			Target:            LanguageChinese,
			CaptureLanguage:   "en-US",
			SynthesisLanguage: "zh-CN",
		}
	}
	return Languages{
		Source:            LanguageChinese,
		Target:            LanguageEnglish,
		CaptureLanguage:   "zh-CN",
		SynthesisLanguage: "en-US",
	}
}

func (d Direction) Flip() Direction {
	if d == ChineseToEnglish {
		return EnglishToChinese
	}
	return ChineseToEnglish
}

func (d Direction) String() string {
	if d == EnglishToChinese {
		return "en-zh"
	}
	return "zh-en"
}

// ParseDirection accepts the config spelling ("zh-en", "en-zh").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "zh-en", "":
		return ChineseToEnglish, nil
	case "en-zh":
		return EnglishToChinese, nil
	default:
		return ChineseToEnglish, fmt.Errorf("unknown direction %q", s)
	}
}

// ValidLanguage reports whether l is one of the two supported codes.
func ValidLanguage(l Language) bool {
	return l == LanguageChinese || l == LanguageEnglish
}

// DirectionState holds the active direction. Toggle is atomic with respect
// to Current and Get.
type DirectionState struct {
	mu  sync.Mutex
	dir Direction
}

func NewDirectionState(initial Direction) *DirectionState {
	return &DirectionState{dir: initial}
}

func (s *DirectionState) Toggle() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = s.dir.Flip()
	return s.dir
}

func (s *DirectionState) Get() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *DirectionState) Current() Languages {
	return s.Get().Languages()
}
