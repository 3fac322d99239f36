package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"clinical-speech-translator/internal/language"
	"clinical-speech-translator/internal/service/stt"
	"clinical-speech-translator/internal/service/translator"
)

const rateLimitMsg = "Rate limit exceeded. Please wait a few seconds and try again."

// fakeAdapter exposes the callback so tests can drive capture events.
type fakeAdapter struct {
	mu       sync.Mutex
	language string
	cb       stt.Callback
	stopped  bool
	startErr error
}

func (a *fakeAdapter) Start(ctx context.Context, languageCode string, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.language = languageCode
	a.cb = cb
	return nil
}

func (a *fakeAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	return nil
}

func (a *fakeAdapter) callback() stt.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cb
}

func (a *fakeAdapter) lang() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

func (a *fakeAdapter) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

type fakeCapture struct {
	mu       sync.Mutex
	adapters []*fakeAdapter
	startErr error
}

func (f *fakeCapture) factory(ctx context.Context) (stt.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &fakeAdapter{startErr: f.startErr}
	f.adapters = append(f.adapters, a)
	return a, nil
}

func (f *fakeCapture) last() *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adapters[len(f.adapters)-1]
}

// fakeTranslator records requests and answers with respond. When gate is
// set each call blocks until a value is received from it.
type fakeTranslator struct {
	mu      sync.Mutex
	calls   []translator.Request
	respond func(n int, req translator.Request) (string, error)
	gate    chan struct{}
}

func (f *fakeTranslator) Translate(ctx context.Context, req translator.Request) (string, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.respond == nil {
		return "translated: " + req.Text, nil
	}
	return f.respond(n, req)
}

func (f *fakeTranslator) requests() []translator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translator.Request{}, f.calls...)
}

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
	langs []string
}

func (s *fakeSpeaker) Speak(ctx context.Context, text, languageCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.langs = append(s.langs, languageCode)
}

func rateLimited() error {
	return &translator.Error{Message: rateLimitMsg, StatusCode: http.StatusTooManyRequests, Kind: translator.KindRateLimited}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DebounceDelay = 30 * time.Millisecond
	cfg.RetryDelay = 20 * time.Millisecond
	return cfg
}

type harness struct {
	c       *Controller
	capture *fakeCapture
	tr      *fakeTranslator
	speaker *fakeSpeaker
}

func newHarness(t *testing.T, cfg Config, tr *fakeTranslator) *harness {
	t.Helper()
	h := &harness{capture: &fakeCapture{}, tr: tr, speaker: &fakeSpeaker{}}
	h.c = New(cfg, tr, h.capture.factory, h.speaker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go h.c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.c.Done()
	})
	return h
}

func (h *harness) start(t *testing.T) *fakeAdapter {
	t.Helper()
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h.capture.last()
}

func (h *harness) view(t *testing.T) View {
	t.Helper()
	v, err := h.c.View(context.Background())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return v
}

// waitFor polls the view until cond holds.
func (h *harness) waitFor(t *testing.T, what string, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := h.view(t); cond(v) {
			return v
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last view %+v", what, h.view(t))
	return View{}
}

func (h *harness) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.tr.requests()) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %d", n, len(h.tr.requests()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DebounceDelay != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.DebounceDelay)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Errorf("expected retry delay 2s, got %v", cfg.RetryDelay)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Pair != language.DefaultPair() {
		t.Errorf("expected default pair, got %+v", cfg.Pair)
	}
}

func TestController_TranslatesAfterDebounce(t *testing.T) {
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		return "pasien mengalami takikardia", nil
	}}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("patient has tachycardia")

	v := h.waitFor(t, "translation", func(v View) bool { return v.Translation != "" })
	if v.Translation != "pasien mengalami takikardia" {
		t.Errorf("unexpected translation %q", v.Translation)
	}
	if v.Loading {
		t.Error("expected loading false after completion")
	}
	if v.Error != "" {
		t.Errorf("unexpected error %q", v.Error)
	}

	reqs := tr.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 call, got %d", len(reqs))
	}
	if reqs[0].Text != "patient has tachycardia" {
		t.Errorf("expected trimmed snapshot, got %q", reqs[0].Text)
	}
	if reqs[0].Pair.SourceName() != "English" || reqs[0].Pair.TargetName() != "Indonesian" {
		t.Errorf("unexpected pair %+v", reqs[0].Pair)
	}
	if reqs[0].RetryCount != 0 || reqs[0].ID == "" {
		t.Errorf("unexpected request metadata %+v", reqs[0])
	}
}

func TestController_DebounceCoalesces(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	cb := a.callback()
	cb.OnFinal("patient")
	cb.OnFinal("has")
	cb.OnFinal("tachycardia")

	h.waitCalls(t, 1)
	time.Sleep(100 * time.Millisecond)

	reqs := tr.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", len(reqs))
	}
	if reqs[0].Text != "patient has tachycardia" {
		t.Errorf("expected last accumulated text, got %q", reqs[0].Text)
	}
}

func TestController_WhitespaceNeverSchedules(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("   ")
	a.callback().OnFinal("")

	h.waitFor(t, "finalized whitespace", func(v View) bool { return v.Finalized == "     " })
	time.Sleep(100 * time.Millisecond)

	if n := len(tr.requests()); n != 0 {
		t.Errorf("expected no calls, got %d", n)
	}
}

func TestController_InterimReplaced(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})
	a := h.start(t)

	a.callback().OnInterim("pat")
	a.callback().OnInterim("patient ha")
	v := h.waitFor(t, "interim", func(v View) bool { return v.Interim == "patient ha" })
	if v.Finalized != "" {
		t.Errorf("interim must not touch finalized text, got %q", v.Finalized)
	}

	a.callback().OnFinal("patient has")
	v = h.waitFor(t, "final", func(v View) bool { return v.Finalized == "patient has " })
	if v.Interim != "" {
		t.Errorf("expected interim cleared, got %q", v.Interim)
	}
}

func TestController_RetriesRateLimitThenSucceeds(t *testing.T) {
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		if n < 2 {
			return "", rateLimited()
		}
		return "ok", nil
	}}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("bp one forty over ninety")

	v := h.waitFor(t, "translation", func(v View) bool { return v.Translation == "ok" })
	if v.Loading || v.Error != "" {
		t.Errorf("unexpected view %+v", v)
	}

	reqs := tr.requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(reqs))
	}
	for i, r := range reqs {
		if r.RetryCount != i {
			t.Errorf("attempt %d: expected retryCount %d, got %d", i, i, r.RetryCount)
		}
		if r.Text != "bp one forty over ninety" || r.Pair != language.DefaultPair() {
			t.Errorf("attempt %d: retry must reuse text and pair, got %+v", i, r)
		}
	}
}

func TestController_RetriesExhausted(t *testing.T) {
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		return "", rateLimited()
	}}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("patient has tachycardia")

	v := h.waitFor(t, "error", func(v View) bool { return v.Error != "" })
	if v.Error != rateLimitMsg {
		t.Errorf("expected rate limit message, got %q", v.Error)
	}
	if v.Loading {
		t.Error("expected loading false after exhausting retries")
	}

	time.Sleep(80 * time.Millisecond)
	if n := len(tr.requests()); n != 4 {
		t.Errorf("expected initial attempt plus 3 retries, got %d", n)
	}
}

func TestController_LoadingHeldDuringRetryWait(t *testing.T) {
	cfg := testConfig()
	cfg.RetryDelay = 300 * time.Millisecond
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		if n == 0 {
			return "", rateLimited()
		}
		return "ok", nil
	}}
	h := newHarness(t, cfg, tr)
	a := h.start(t)

	a.callback().OnFinal("fever")
	h.waitCalls(t, 1)
	time.Sleep(50 * time.Millisecond)

	v := h.view(t)
	if !v.Loading {
		t.Error("expected loading to stay true while a retry is pending")
	}
	if v.Error != "" {
		t.Errorf("rate limit must not surface before retries run out, got %q", v.Error)
	}
	if n := len(tr.requests()); n != 1 {
		t.Errorf("expected retry to wait for its delay, got %d calls", n)
	}

	h.waitFor(t, "retry success", func(v View) bool { return v.Translation == "ok" })
}

func TestController_FailuresSurfaceMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &translator.Error{Message: "model overloaded", StatusCode: 500, Kind: translator.KindStatus}, "model overloaded"},
		{"transport", &translator.Error{Message: translator.MsgNetworkError, Kind: translator.KindTransport}, "Network error"},
		{"untyped", errors.New("boom"), "Translation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
				return "", tt.err
			}}
			h := newHarness(t, testConfig(), tr)
			a := h.start(t)

			a.callback().OnFinal("patient")

			v := h.waitFor(t, "error", func(v View) bool { return v.Error != "" })
			if v.Error != tt.want {
				t.Errorf("expected %q, got %q", tt.want, v.Error)
			}
			if v.Loading {
				t.Error("expected loading false")
			}
			if n := len(tr.requests()); n != 1 {
				t.Errorf("non rate-limit failures must not retry, got %d calls", n)
			}
		})
	}
}

func TestController_StopMidDebounce_NoCall(t *testing.T) {
	cfg := testConfig()
	cfg.DebounceDelay = 80 * time.Millisecond
	tr := &fakeTranslator{}
	h := newHarness(t, cfg, tr)
	a := h.start(t)

	a.callback().OnFinal("patient has tachycardia")
	h.waitFor(t, "final", func(v View) bool { return v.Finalized != "" })
	if err := h.c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := len(tr.requests()); n != 0 {
		t.Errorf("expected no call after stopping inside the debounce window, got %d", n)
	}

	v := h.view(t)
	if v.Recording || v.Loading {
		t.Errorf("expected idle and not loading, got %+v", v)
	}
	if v.Finalized != "" || v.Interim != "" {
		t.Errorf("expected transcript reset on stop, got %+v", v)
	}
	if !a.isStopped() {
		t.Error("expected capture adapter stopped")
	}
}

func TestController_RateLimitAfterStop_NoRetry(t *testing.T) {
	tr := &fakeTranslator{
		gate: make(chan struct{}),
		respond: func(n int, req translator.Request) (string, error) {
			if n == 0 {
				return "", rateLimited()
			}
			return "late", nil
		},
	}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("patient has tachycardia")
	h.waitCalls(t, 1)

	if err := h.c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	tr.gate <- struct{}{}

	v := h.waitFor(t, "rate limit error", func(v View) bool { return v.Error != "" })
	if v.Error != rateLimitMsg {
		t.Errorf("expected rate limit message, got %q", v.Error)
	}

	time.Sleep(100 * time.Millisecond)
	if n := len(tr.requests()); n != 1 {
		t.Errorf("expected no retry on an idle session, got %d calls", n)
	}
	v = h.view(t)
	if v.Recording || v.Loading {
		t.Errorf("expected idle and not loading, got %+v", v)
	}
	if v.Translation != "" {
		t.Errorf("expected no translation, got %q", v.Translation)
	}
}

func TestController_SupersededRateLimit_NoRetry(t *testing.T) {
	release := make(chan struct{})
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		if n == 0 {
			<-release
			return "", rateLimited()
		}
		return "translated: " + req.Text, nil
	}}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("first")
	h.waitCalls(t, 1)
	a.callback().OnFinal("second")

	h.waitFor(t, "newer translation", func(v View) bool { return v.Translation == "translated: first second" })
	close(release)

	time.Sleep(100 * time.Millisecond)
	reqs := tr.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected no retry of the superseded attempt, got %+v", reqs)
	}
	v := h.view(t)
	if v.Translation != "translated: first second" {
		t.Errorf("newest text must win, got %q", v.Translation)
	}
	if v.Loading || v.Error != "" {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestController_SupersededSuccessDiscarded(t *testing.T) {
	release := make(chan struct{})
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		if n == 0 {
			<-release
		}
		return "translated: " + req.Text, nil
	}}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("first")
	h.waitCalls(t, 1)
	a.callback().OnFinal("second")

	h.waitFor(t, "newer translation", func(v View) bool { return v.Translation == "translated: first second" })
	close(release)

	time.Sleep(50 * time.Millisecond)
	if v := h.view(t); v.Translation != "translated: first second" {
		t.Errorf("older response must not overwrite the newer one, got %q", v.Translation)
	}
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	tr := &fakeTranslator{gate: make(chan struct{})}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("old sentence")
	h.waitCalls(t, 1)

	h.c.Stop(context.Background())
	h.start(t)
	tr.gate <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	v := h.view(t)
	if v.Translation != "" {
		t.Errorf("response from a previous session must be discarded, got %q", v.Translation)
	}
	if v.Loading {
		t.Error("stale response must not leave loading set")
	}
}

func TestController_StaleCaptureEventsIgnored(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHarness(t, testConfig(), tr)
	old := h.start(t)
	oldCb := old.callback()

	h.c.Stop(context.Background())
	h.start(t)

	oldCb.OnFinal("from the old session")
	oldCb.OnError(errors.New("late failure"))

	time.Sleep(50 * time.Millisecond)
	v := h.view(t)
	if v.Finalized != "" || v.Error != "" {
		t.Errorf("events from a previous adapter must be ignored, got %+v", v)
	}
	if !v.Recording {
		t.Error("expected new session to keep recording")
	}
}

func TestController_StartResetsState(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("patient")
	h.waitFor(t, "translation", func(v View) bool { return v.Translation != "" })
	h.c.Stop(context.Background())

	h.start(t)
	v := h.view(t)
	if v.Translation != "" || v.Error != "" || v.Finalized != "" || v.Loading {
		t.Errorf("expected cleared state after start, got %+v", v)
	}
	if !v.Recording {
		t.Error("expected recording")
	}
}

func TestController_StartTwice(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})
	h.start(t)

	if err := h.c.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestController_CaptureStartFailure(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})
	h.capture.mu.Lock()
	h.capture.startErr = errors.New("microphone unavailable")
	h.capture.mu.Unlock()

	if err := h.c.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	v := h.view(t)
	if v.Recording {
		t.Error("expected idle after failed start")
	}
	if v.Error != "microphone unavailable" {
		t.Errorf("expected capture error displayed, got %q", v.Error)
	}
}

func TestController_CaptureErrorStopsSession(t *testing.T) {
	tr := &fakeTranslator{}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	a.callback().OnFinal("patient")
	a.callback().OnError(errors.New("not-allowed"))

	v := h.waitFor(t, "idle", func(v View) bool { return !v.Recording })
	if v.Error != "not-allowed" {
		t.Errorf("expected adapter error text, got %q", v.Error)
	}
	if !a.isStopped() {
		t.Error("expected adapter stopped")
	}

	time.Sleep(80 * time.Millisecond)
	if n := len(tr.requests()); n != 0 {
		t.Errorf("expected pending debounce cancelled, got %d calls", n)
	}
}

func TestController_CaptureEndStopsSession(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})
	a := h.start(t)

	a.callback().OnEnd()

	v := h.waitFor(t, "idle", func(v View) bool { return !v.Recording })
	if v.Error != "" || v.Loading {
		t.Errorf("unexpected view after end %+v", v)
	}
}

func TestController_LanguageLockedWhileRecording(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})
	pair := language.Pair{Source: language.Spanish, Target: language.French}

	if err := h.c.SetLanguages(context.Background(), pair); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := h.start(t)
	if a.lang() != "es-ES" {
		t.Errorf("expected capture in es-ES, got %s", a.lang())
	}

	err := h.c.SetLanguages(context.Background(), language.DefaultPair())
	if !errors.Is(err, ErrLanguageLocked) {
		t.Errorf("expected ErrLanguageLocked, got %v", err)
	}
	if h.view(t).Pair != pair {
		t.Error("pair must not change while recording")
	}

	h.c.Stop(context.Background())
	if err := h.c.SetLanguages(context.Background(), language.DefaultPair()); err != nil {
		t.Errorf("unexpected error after stop: %v", err)
	}
}

func TestController_SetLanguages_Unsupported(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeTranslator{})

	err := h.c.SetLanguages(context.Background(), language.Pair{Source: "de-DE", Target: language.English})
	if err == nil {
		t.Error("expected error for unsupported code")
	}
}

func TestController_Speak(t *testing.T) {
	tr := &fakeTranslator{respond: func(n int, req translator.Request) (string, error) {
		return "pasien stabil", nil
	}}
	h := newHarness(t, testConfig(), tr)

	if err := h.c.Speak(context.Background()); !errors.Is(err, ErrNothingToSpeak) {
		t.Errorf("expected ErrNothingToSpeak without a translation, got %v", err)
	}

	a := h.start(t)
	a.callback().OnFinal("patient is stable")
	h.waitFor(t, "translation", func(v View) bool { return v.Translation != "" && !v.Loading })

	if err := h.c.Speak(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.speaker.mu.Lock()
	defer h.speaker.mu.Unlock()
	if len(h.speaker.texts) != 1 || h.speaker.texts[0] != "pasien stabil" {
		t.Errorf("unexpected spoken text %v", h.speaker.texts)
	}
	if h.speaker.langs[0] != "id-ID" {
		t.Errorf("expected target language id-ID, got %s", h.speaker.langs[0])
	}
}

func TestController_SpeakRejectedWhileLoading(t *testing.T) {
	tr := &fakeTranslator{gate: make(chan struct{}, 1)}
	h := newHarness(t, testConfig(), tr)
	a := h.start(t)

	tr.gate <- struct{}{}
	a.callback().OnFinal("first")
	h.waitFor(t, "translation", func(v View) bool { return v.Translation != "" && !v.Loading })

	a.callback().OnFinal("second")
	h.waitFor(t, "loading", func(v View) bool { return v.Loading })

	if err := h.c.Speak(context.Background()); !errors.Is(err, ErrNothingToSpeak) {
		t.Errorf("expected ErrNothingToSpeak while loading, got %v", err)
	}
	tr.gate <- struct{}{}
}

func TestController_ClosedAfterRunReturns(t *testing.T) {
	c := New(testConfig(), &fakeTranslator{}, (&fakeCapture{}).factory, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	cancel()
	<-c.Done()

	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
