package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/language"
	"clinical-speech-translator/internal/observability/logging"
	"clinical-speech-translator/internal/observability/metrics"
	"clinical-speech-translator/internal/service/stt"
	"clinical-speech-translator/internal/service/translator"
	"clinical-speech-translator/internal/service/tts"
)

// Config holds the orchestration timings.
type Config struct {
	DebounceDelay time.Duration
	RetryDelay    time.Duration
	MaxRetries    int
	Pair          language.Pair
	Provider      string // capture provider name, used as a metrics label
}

// DefaultConfig returns the default timings: 1s debounce, 2s retry delay,
// three retries, English to Indonesian.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 1000 * time.Millisecond,
		RetryDelay:    2000 * time.Millisecond,
		MaxRetries:    3,
		Pair:          language.DefaultPair(),
		Provider:      "mock",
	}
}

// Translator performs one translation attempt.
type Translator interface {
	Translate(ctx context.Context, req translator.Request) (string, error)
}

// View is an immutable snapshot of what the user sees.
type View struct {
	Recording   bool
	Finalized   string
	Interim     string
	Translation string
	Error       string
	Loading     bool
	Pair        language.Pair
}

// Renderer displays views. Render is called from the controller goroutine.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

func (f RendererFunc) Render(v View) { f(v) }

// Controller owns all session state. A single goroutine started by Run
// consumes commands, capture events, timer fires, and translation results
// from one channel; every other method posts to it.
type Controller struct {
	cfg        Config
	translator Translator
	capture    stt.Factory
	speaker    tts.Speaker
	renderer   Renderer
	metrics    *metrics.Metrics
	ids        *IDGenerator
	logger     zerolog.Logger

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	ctx          context.Context
	lifecycle    *Lifecycle
	transcript   Transcript
	debounce     *Debouncer
	retry        *Debouncer
	pendingRetry translator.Request
	attemptSeq   uint64 // debounce firing that started the live attempt chain
	adapter      stt.Adapter
	translation  string
	errMsg       string
	loading      bool
}

// New creates a controller. A nil renderer discards views; a nil speaker
// makes Speak a no-op.
func New(cfg Config, t Translator, capture stt.Factory, speaker tts.Speaker, renderer Renderer) *Controller {
	if renderer == nil {
		renderer = RendererFunc(func(View) {})
	}
	return &Controller{
		cfg:        cfg,
		translator: t,
		capture:    capture,
		speaker:    speaker,
		renderer:   renderer,
		metrics:    metrics.DefaultMetrics,
		ids:        NewIDGenerator(),
		logger:     logging.WithComponent("session"),
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		lifecycle:  NewLifecycle(cfg.Pair),
		debounce:   NewDebouncer(cfg.DebounceDelay),
		retry:      NewDebouncer(cfg.RetryDelay),
	}
}

type event interface{}

type (
	startCmd struct{ reply chan error }
	stopCmd  struct{ reply chan error }
	pairCmd  struct {
		pair  language.Pair
		reply chan error
	}
	speakCmd struct{ reply chan error }
	viewCmd  struct{ reply chan View }

	captureInterim struct {
		gen  uint64
		text string
	}
	captureFinal struct {
		gen  uint64
		text string
	}
	captureError struct {
		gen uint64
		err error
	}
	captureEnd struct{ gen uint64 }

	debounceFired struct {
		gen uint64
		seq uint64
	}
	retryFired struct {
		gen uint64
		seq uint64
	}
	translateResult struct {
		gen    uint64
		seq    uint64
		req    translator.Request
		output string
		err    error
	}
)

// Run processes events until ctx is done. Capture is stopped and timers are
// cancelled on return.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// post delivers ev to the loop unless the controller has exited.
func (c *Controller) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) call(ctx context.Context, ev event, reply chan error) error {
	if !c.post(ev) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a new recording session.
func (c *Controller) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.call(ctx, startCmd{reply: reply}, reply)
}

// Stop ends the recording session. Stopping an idle session is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.call(ctx, stopCmd{reply: reply}, reply)
}

// SetLanguages selects the language pair. Fails with ErrLanguageLocked while
// recording.
func (c *Controller) SetLanguages(ctx context.Context, pair language.Pair) error {
	reply := make(chan error, 1)
	return c.call(ctx, pairCmd{pair: pair, reply: reply}, reply)
}

// Speak voices the current translation in the target language. Fails with
// ErrNothingToSpeak when there is no translation or a request is loading.
func (c *Controller) Speak(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.call(ctx, speakCmd{reply: reply}, reply)
}

// View returns the current snapshot.
func (c *Controller) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !c.post(viewCmd{reply: reply}) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) handle(ev event) {
	switch e := ev.(type) {
	case startCmd:
		e.reply <- c.start()
	case stopCmd:
		c.stop("")
		e.reply <- nil
	case pairCmd:
		e.reply <- c.setPair(e.pair)
	case speakCmd:
		e.reply <- c.speak()
	case viewCmd:
		e.reply <- c.view()
		return

	case captureInterim:
		if !c.live(e.gen) {
			return
		}
		c.metrics.RecordTranscript(false)
		c.transcript.SetInterim(e.text)
	case captureFinal:
		if !c.live(e.gen) {
			return
		}
		c.metrics.RecordTranscript(true)
		c.transcript.AppendFinal(e.text)
		c.scheduleTranslation(e.gen)
	case captureError:
		if !c.live(e.gen) {
			return
		}
		c.metrics.RecordCaptureError(c.cfg.Provider)
		c.logger.Warn().Err(e.err).Msg("Capture failed")
		c.stop(e.err.Error())
	case captureEnd:
		if !c.live(e.gen) {
			return
		}
		c.logger.Info().Msg("Capture ended")
		c.stop("")

	case debounceFired:
		c.onDebounce(e)
	case retryFired:
		c.onRetry(e)
	case translateResult:
		c.onResult(e)
	default:
		c.logger.Error().Interface("event", ev).Msg("Unknown event")
		return
	}
	c.render()
}

// live reports whether a capture event belongs to the running session.
func (c *Controller) live(gen uint64) bool {
	return c.lifecycle.IsRecording() && c.lifecycle.IsCurrent(gen)
}

func (c *Controller) start() error {
	if c.lifecycle.IsRecording() {
		return ErrAlreadyRecording
	}

	c.transcript.Reset()
	c.translation = ""
	c.errMsg = ""
	c.loading = false
	c.debounce.Cancel()
	c.retry.Cancel()

	adapter, err := c.capture(c.ctx)
	if err != nil {
		c.errMsg = err.Error()
		return err
	}

	sessionId := c.ids.NewSession()
	gen, _ := c.lifecycle.Start(sessionId)
	c.logger = logging.WithSession(sessionId, gen)

	pair := c.lifecycle.Pair()
	if err := adapter.Start(c.ctx, string(pair.Source), &captureSink{c: c, gen: gen}); err != nil {
		c.lifecycle.Stop()
		c.errMsg = err.Error()
		c.logger.Warn().Err(err).Msg("Capture failed to start")
		return err
	}
	c.adapter = adapter
	c.metrics.RecordSessionStart()

	c.logger.Info().
		Str("sourceLang", string(pair.Source)).
		Str("targetLang", string(pair.Target)).
		Msg("Recording started")
	return nil
}

// stop returns to Idle. A non-empty errMsg is displayed.
func (c *Controller) stop(errMsg string) {
	if errMsg != "" {
		c.errMsg = errMsg
	}
	if !c.lifecycle.Stop() {
		return
	}
	if c.adapter != nil {
		if err := c.adapter.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("Capture stop failed")
		}
		c.adapter = nil
	}
	c.debounce.Cancel()
	c.retry.Cancel()
	c.loading = false
	c.transcript.Reset()
	c.metrics.RecordSessionEnd()
	c.logger.Info().Msg("Recording stopped")
}

func (c *Controller) setPair(pair language.Pair) error {
	for _, code := range []language.Code{pair.Source, pair.Target} {
		if _, err := language.Parse(string(code)); err != nil {
			return err
		}
	}
	return c.lifecycle.SetPair(pair)
}

func (c *Controller) speak() error {
	if c.translation == "" || c.loading {
		return ErrNothingToSpeak
	}
	if c.speaker != nil {
		c.speaker.Speak(c.ctx, c.translation, string(c.lifecycle.Pair().Target))
	}
	return nil
}

func (c *Controller) scheduleTranslation(gen uint64) {
	if c.transcript.Snapshot() == "" {
		return
	}
	c.metrics.RecordDebounceScheduled()
	c.debounce.Schedule(func(seq uint64) {
		c.post(debounceFired{gen: gen, seq: seq})
	})
}

func (c *Controller) onDebounce(e debounceFired) {
	if !c.lifecycle.IsCurrent(e.gen) {
		c.discard("debounce", e.gen)
		return
	}
	if !c.debounce.Claim(e.seq) {
		return
	}
	c.metrics.RecordDebounceFired()

	text := c.transcript.Snapshot()
	if text == "" {
		return
	}
	// A newer transcript supersedes any retry chain still waiting and any
	// attempt still in flight.
	c.retry.Cancel()
	c.attemptSeq = e.seq
	c.attempt(e.gen, translator.Request{Text: text, Pair: c.lifecycle.Pair()})
}

func (c *Controller) onRetry(e retryFired) {
	if !c.lifecycle.IsCurrent(e.gen) {
		c.discard("retry", e.gen)
		return
	}
	if !c.retry.Claim(e.seq) {
		return
	}
	req := c.pendingRetry
	req.RetryCount++
	c.attempt(e.gen, req)
}

// attempt sets loading and sends one request in the background. The result
// is tagged with the attempt chain it belongs to.
func (c *Controller) attempt(gen uint64, req translator.Request) {
	req.ID = c.ids.Next(c.lifecycle.SessionId())
	c.loading = true

	c.logger.Debug().
		Str("requestId", req.ID).
		Int("retryCount", req.RetryCount).
		Int("textLength", len(req.Text)).
		Msg("Translation attempt")

	ctx, seq := c.ctx, c.attemptSeq
	go func() {
		out, err := c.translator.Translate(ctx, req)
		c.post(translateResult{gen: gen, seq: seq, req: req, output: out, err: err})
	}()
}

func (c *Controller) onResult(e translateResult) {
	if !c.lifecycle.IsCurrent(e.gen) {
		c.discard("response", e.gen)
		return
	}
	if e.seq != c.attemptSeq {
		c.metrics.RecordStale("superseded")
		c.logger.Debug().
			Str("requestId", e.req.ID).
			Msg("Discarded response from a superseded attempt")
		return
	}

	if e.err == nil {
		c.metrics.RecordAttempt("success")
		c.translation = e.output
		c.errMsg = ""
		c.loading = false
		return
	}

	// Retries only run while recording; Stop has already cleared loading.
	if c.lifecycle.IsRecording() && translator.ShouldRetry(e.err, e.req.RetryCount, c.cfg.MaxRetries) {
		c.metrics.RecordAttempt("rate_limited")
		c.metrics.RecordRetry()
		c.pendingRetry = e.req
		gen := e.gen
		c.retry.Schedule(func(seq uint64) {
			c.post(retryFired{gen: gen, seq: seq})
		})
		c.logger.Info().
			Str("requestId", e.req.ID).
			Int("retryCount", e.req.RetryCount).
			Dur("retryDelay", c.cfg.RetryDelay).
			Msg("Rate limited, retry scheduled")
		return
	}

	outcome := "failed"
	var te *translator.Error
	if errors.As(e.err, &te) {
		outcome = te.Kind.String()
	}
	c.metrics.RecordAttempt(outcome)
	c.errMsg = translator.Message(e.err)
	c.loading = false
	c.logger.Warn().
		Err(e.err).
		Str("requestId", e.req.ID).
		Int("retryCount", e.req.RetryCount).
		Msg("Translation failed")
}

func (c *Controller) discard(kind string, gen uint64) {
	c.metrics.RecordStale(kind)
	c.logger.Debug().
		Str("kind", kind).
		Uint64("staleGeneration", gen).
		Msg("Discarded work from a superseded session")
}

func (c *Controller) view() View {
	return View{
		Recording:   c.lifecycle.IsRecording(),
		Finalized:   c.transcript.Finalized(),
		Interim:     c.transcript.Interim(),
		Translation: c.translation,
		Error:       c.errMsg,
		Loading:     c.loading,
		Pair:        c.lifecycle.Pair(),
	}
}

func (c *Controller) render() {
	c.renderer.Render(c.view())
}

func (c *Controller) shutdown() {
	c.debounce.Cancel()
	c.retry.Cancel()
	if c.adapter != nil {
		_ = c.adapter.Stop()
		c.adapter = nil
		if c.lifecycle.Stop() {
			c.metrics.RecordSessionEnd()
		}
	}
}

// captureSink forwards adapter callbacks to the loop tagged with the
// session generation they belong to.
type captureSink struct {
	c   *Controller
	gen uint64
}

func (s *captureSink) OnInterim(text string) { s.c.post(captureInterim{gen: s.gen, text: text}) }
func (s *captureSink) OnFinal(text string)   { s.c.post(captureFinal{gen: s.gen, text: text}) }
func (s *captureSink) OnError(err error)     { s.c.post(captureError{gen: s.gen, err: err}) }
func (s *captureSink) OnEnd()                { s.c.post(captureEnd{gen: s.gen}) }
