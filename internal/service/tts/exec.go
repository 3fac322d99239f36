package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/observability/logging"
)

// LanguagePlaceholder in a command argument is replaced by the language code.
const LanguagePlaceholder = "{lang}"

type execRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// ExecSpeaker pipes each utterance as JSON to an external command, one
// process per utterance. Utterances are played one at a time.
type ExecSpeaker struct {
	cmd    []string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewExecSpeaker parses command with shell quoting rules.
func NewExecSpeaker(command string) (*ExecSpeaker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &ExecSpeaker{cmd: args, logger: logging.WithComponent("tts.exec")}, nil
}

// Speak starts playback in the background.
func (e *ExecSpeaker) Speak(ctx context.Context, text, languageCode string) {
	go func() {
		if err := e.run(ctx, text, languageCode); err != nil {
			e.logger.Warn().Err(err).Str("languageCode", languageCode).Msg("Speech output failed")
		}
	}()
}

func (e *ExecSpeaker) run(ctx context.Context, text, languageCode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(execRequest{Text: text, Language: languageCode})
	if err != nil {
		return err
	}

	args := make([]string, 0, len(e.cmd)-1)
	for _, a := range e.cmd[1:] {
		args = append(args, strings.ReplaceAll(a, LanguagePlaceholder, languageCode))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	cmd.Stdin = bytes.NewReader(append(data, '\n'))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w: %s", e.cmd[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
