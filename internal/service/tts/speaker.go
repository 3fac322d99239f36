// Package tts hands translated text to a speech output backend.
package tts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/observability/logging"
)

// Speaker voices text in a language. Speak returns immediately; playback
// failures are logged, never reported to the caller.
type Speaker interface {
	Speak(ctx context.Context, text, languageCode string)
}

// New returns the speaker for mode: "exec" runs command, anything else logs.
func New(mode, command string) (Speaker, error) {
	switch mode {
	case "exec":
		s, err := NewExecSpeaker(command)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "log", "":
		return NewLogSpeaker(), nil
	default:
		return nil, fmt.Errorf("unknown tts mode %q", mode)
	}
}

// LogSpeaker writes the utterance to the log instead of playing it.
type LogSpeaker struct {
	logger zerolog.Logger
}

func NewLogSpeaker() *LogSpeaker {
	return &LogSpeaker{logger: logging.WithComponent("tts")}
}

func (s *LogSpeaker) Speak(ctx context.Context, text, languageCode string) {
	s.logger.Info().
		Str("languageCode", languageCode).
		Int("textLength", len(text)).
		Msg("Speak")
}
