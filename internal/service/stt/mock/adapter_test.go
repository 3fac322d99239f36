package mock

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	interims []string
	finals   []string
	errors   []error
	ends     int
}

func (c *testCallback) OnInterim(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interims = append(c.interims, text)
}

func (c *testCallback) OnFinal(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, text)
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) OnEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *testCallback) snapshot() ([]string, []string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.interims...), append([]string{}, c.finals...), c.ends
}

func waitDone(t *testing.T, a *Adapter) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not finish")
	}
}

func TestAdapter_ReplaysScript(t *testing.T) {
	script := []Utterance{
		{Interims: []string{"pat", "patient"}, Final: "patient has tachycardia"},
		{Interims: nil, Final: "stable"},
	}
	a := New(script, WithInterval(time.Millisecond))
	cb := &testCallback{}

	if err := a.Start(context.Background(), "en-US", cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitDone(t, a)

	interims, finals, ends := cb.snapshot()
	if len(interims) != 2 || interims[1] != "patient" {
		t.Errorf("unexpected interims %v", interims)
	}
	if len(finals) != 2 || finals[0] != "patient has tachycardia" || finals[1] != "stable" {
		t.Errorf("unexpected finals %v", finals)
	}
	if ends != 1 {
		t.Errorf("expected 1 end signal, got %d", ends)
	}
	if a.Language() != "en-US" {
		t.Errorf("expected language en-US, got %s", a.Language())
	}
}

func TestAdapter_WithoutEnd(t *testing.T) {
	a := New([]Utterance{{Final: "ok"}}, WithInterval(time.Millisecond), WithoutEnd())
	cb := &testCallback{}
	a.Start(context.Background(), "en-US", cb)
	waitDone(t, a)

	if _, _, ends := cb.snapshot(); ends != 0 {
		t.Errorf("expected no end signal, got %d", ends)
	}
}

func TestAdapter_StopSilencesCallbacks(t *testing.T) {
	a := New(nil, WithInterval(20*time.Millisecond))
	cb := &testCallback{}
	a.Start(context.Background(), "en-US", cb)

	if err := a.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitDone(t, a)

	interims, finals, ends := cb.snapshot()
	if len(interims)+len(finals)+ends != 0 {
		t.Errorf("expected no callbacks after immediate stop, got %v %v %d", interims, finals, ends)
	}
}

func TestAdapter_Stop_Idempotent(t *testing.T) {
	a := New(nil)
	a.Start(context.Background(), "en-US", &testCallback{})

	a.Stop()
	if err := a.Stop(); err != nil {
		t.Fatalf("unexpected error on second stop: %v", err)
	}
}

func TestAdapter_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := New(nil, WithInterval(time.Hour))
	a.Start(ctx, "en-US", &testCallback{})

	cancel()
	waitDone(t, a)
}

func TestFactory_ReturnsFreshAdapters(t *testing.T) {
	f := Factory(nil)
	a1, err := f(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := f(context.Background())
	if a1 == a2 {
		t.Error("expected a new adapter per call")
	}
}
