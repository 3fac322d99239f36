// Package session runs the recording client: capture events feed a
// debounced, rate-limit-aware translation loop whose state is rendered as a
// View after every change.
package session

import (
	"errors"
	"fmt"
	"sync"

	"clinical-speech-translator/internal/language"
)

// State represents the lifecycle state of the recording session.
type State int

const (
	// StateIdle - No capture running; languages may change.
	StateIdle State = iota
	// StateRecording - Capture running; languages are locked.
	StateRecording
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrAlreadyRecording = errors.New("session is already recording")
	ErrLanguageLocked   = errors.New("language pair cannot change while recording")
	ErrNothingToSpeak   = errors.New("no settled translation to speak")
	ErrClosed           = errors.New("session controller is closed")
)

// Lifecycle manages the Idle/Recording state machine.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Start()──→ RECORDING ──Stop()──→ IDLE
//
// Rules:
//   - Every Start opens a new generation; work tagged with an older
//     generation is stale.
//   - SetPair is only allowed in IDLE.
//   - Stop is idempotent.
type Lifecycle struct {
	mu         sync.RWMutex
	state      State
	sessionId  string
	generation uint64
	pair       language.Pair
}

// NewLifecycle creates a lifecycle in IDLE state with the given pair.
func NewLifecycle(pair language.Pair) *Lifecycle {
	return &Lifecycle{
		state: StateIdle,
		pair:  pair,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsRecording returns true while capture is running.
func (l *Lifecycle) IsRecording() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording
}

// SessionId returns the id of the latest session, or "" before the first Start.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// Generation returns the generation of the latest session.
func (l *Lifecycle) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}

// IsCurrent reports whether gen belongs to the latest session.
func (l *Lifecycle) IsCurrent(gen uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return gen == l.generation
}

// Pair returns the selected language pair.
func (l *Lifecycle) Pair() language.Pair {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pair
}

// SetPair changes the language pair. Returns ErrLanguageLocked while recording.
func (l *Lifecycle) SetPair(pair language.Pair) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateRecording {
		return ErrLanguageLocked
	}
	l.pair = pair
	return nil
}

// Start transitions IDLE → RECORDING under a new session id and returns the
// new generation.
func (l *Lifecycle) Start(sessionId string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateRecording {
		return l.generation, ErrAlreadyRecording
	}
	l.state = StateRecording
	l.sessionId = sessionId
	l.generation++
	return l.generation, nil
}

// Stop transitions to IDLE. Returns true if the session was recording.
// The generation is kept so in-flight work from this session still applies.
func (l *Lifecycle) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateIdle {
		return false
	}
	l.state = StateIdle
	return true
}
