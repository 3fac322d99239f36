// Package stt defines the interface for speech capture adapters.
package stt

import "context"

// Callback receives capture results from an adapter.
type Callback interface {
	// OnInterim is called with text that may still be revised.
	OnInterim(text string)

	// OnFinal is called with a settled segment of text.
	OnFinal(text string)

	// OnError is called when capture fails. No further results follow.
	OnError(err error)

	// OnEnd is called when capture stops on its own.
	OnEnd()
}

// Adapter is one continuous capture session bound to a language.
type Adapter interface {
	// Start begins capturing speech in languageCode and reporting to cb.
	Start(ctx context.Context, languageCode string, cb Callback) error

	// Stop ends capture. A callback already in progress may still complete;
	// no new callbacks start after Stop returns.
	Stop() error
}

// Factory constructs a fresh adapter for each recording session.
type Factory func(ctx context.Context) (Adapter, error)
