// Package llm defines the contract for the text model behind the
// correction and translation stages.
package llm

import (
	"context"
	"errors"
)

// Stage names the pipeline step a request belongs to.
type Stage string

const (
	StageCorrection  Stage = "correction"
	StageTranslation Stage = "translation"
)

// Request describes a single prompt.
type Request struct {
	RequestID string
	Stage     Stage
	Prompt    string
	// Text is the transcript embedded in Prompt.
	Text string
}

// ErrRateLimited is wrapped by completers when the provider rejects a call
// with a rate-limit condition.
var ErrRateLimited = errors.New("upstream rate limit (429)")

// Completer is a pluggable model backend returning one completion per call.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
