// Package mock provides a scripted capture adapter for running without a
// microphone or cloud credentials. It replays utterances as interim results
// followed by exactly one final result each.
package mock

import (
	"context"
	"sync"
	"time"

	"clinical-speech-translator/internal/service/stt"
)

// Utterance is one scripted spoken segment.
type Utterance struct {
	Interims []string // Progressive interim transcripts
	Final    string   // Settled transcript
}

// DefaultScript is a short clinical exchange.
var DefaultScript = []Utterance{
	{
		Interims: []string{"patient", "patient has", "patient has tachy"},
		Final:    "patient has tachycardia",
	},
	{
		Interims: []string{"blood pressure", "blood pressure is one"},
		Final:    "blood pressure is one forty over ninety",
	},
	{
		Interims: []string{"no known", "no known drug"},
		Final:    "no known drug allergies",
	},
}

// Adapter implements stt.Adapter by replaying a script.
type Adapter struct {
	script    []Utterance
	interval  time.Duration
	endOnDone bool

	mu       sync.Mutex
	cb       stt.Callback
	language string
	stopped  bool
	stop     chan struct{}
	done     chan struct{}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithInterval sets the delay before every emitted result.
func WithInterval(d time.Duration) Option {
	return func(a *Adapter) { a.interval = d }
}

// WithoutEnd keeps the adapter silent after the script instead of signalling end.
func WithoutEnd() Option {
	return func(a *Adapter) { a.endOnDone = false }
}

// New creates a mock adapter. A nil script uses DefaultScript.
func New(script []Utterance, opts ...Option) *Adapter {
	if script == nil {
		script = DefaultScript
	}
	a := &Adapter{
		script:    script,
		interval:  300 * time.Millisecond,
		endOnDone: true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Factory returns an stt.Factory producing adapters with the same script.
func Factory(script []Utterance, opts ...Option) stt.Factory {
	return func(ctx context.Context) (stt.Adapter, error) {
		return New(script, opts...), nil
	}
}

// Start begins replaying the script.
func (a *Adapter) Start(ctx context.Context, languageCode string, cb stt.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.language = languageCode
	a.mu.Unlock()

	go a.run(ctx)
	return nil
}

// Language returns the code passed to Start.
func (a *Adapter) Language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)

	for _, utt := range a.script {
		for _, interim := range utt.Interims {
			if !a.wait(ctx) {
				return
			}
			a.emit(func(cb stt.Callback) { cb.OnInterim(interim) })
		}
		if !a.wait(ctx) {
			return
		}
		a.emit(func(cb stt.Callback) { cb.OnFinal(utt.Final) })
	}

	if a.endOnDone {
		a.emit(func(cb stt.Callback) { cb.OnEnd() })
	}
}

func (a *Adapter) wait(ctx context.Context) bool {
	select {
	case <-time.After(a.interval):
		return true
	case <-a.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// emit invokes fn unless the adapter has stopped. The lock is not held
// during the callback so a blocked receiver cannot stall Stop.
func (a *Adapter) emit(fn func(stt.Callback)) {
	a.mu.Lock()
	cb := a.cb
	stopped := a.stopped
	a.mu.Unlock()
	if stopped || cb == nil {
		return
	}
	fn(cb)
}

// Stop halts the replay. Idempotent.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.stop)
	a.mu.Unlock()
	return nil
}

// Done is closed once the replay goroutine has exited.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}
