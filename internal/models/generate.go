// Package models defines the wire payloads of the translation endpoint and
// the events published about it.
package models

// GenerateRequest is the body of POST /api/generate.
// Language fields carry names ("English"), not capture codes.
type GenerateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

// GenerateResponse is returned with HTTP 200.
type GenerateResponse struct {
	Output string `json:"output"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
