// Package schema validates inbound request payloads.
package schema

import (
	"strings"

	"clinical-speech-translator/internal/models"
)

// MsgMissingParameters is the body error for any absent request field.
const MsgMissingParameters = "Missing required parameters"

// ValidationError lists the request fields that were absent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return MsgMissingParameters
}

// Detail names the missing fields for logs.
func (e *ValidationError) Detail() string {
	return "missing: " + strings.Join(e.Fields, ", ")
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate requires text, sourceLang and targetLang to be non-empty.
func (v *Validator) Validate(req models.GenerateRequest) error {
	var missing []string
	if req.Text == "" {
		missing = append(missing, "text")
	}
	if req.SourceLang == "" {
		missing = append(missing, "sourceLang")
	}
	if req.TargetLang == "" {
		missing = append(missing, "targetLang")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
