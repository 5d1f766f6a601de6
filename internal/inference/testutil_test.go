package inference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"libreplexity/internal/prefs"
	"libreplexity/internal/registry"
	"libreplexity/pkg/types"
)

var (
	smallModel = types.ModelSpec{ID: "small-1b", SizeClass: types.SizeSmall}
	largeModel = types.ModelSpec{ID: "large-8b", SizeClass: types.SizeLarge}
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeEngine tokenizes by rune and streams a fixed reply.
type fakeEngine struct {
	mu         sync.Mutex
	reloads    []string
	reloadGate chan struct{}
	reloadErr  error
	progress   []string
	deltas     []string
	chatErr    error
	chatGate   chan struct{}
	requests   []ChatRequest
	resets     int
	active     int
	maxActive  int
}

func (f *fakeEngine) Encode(text string) ([]int, error) {
	r := []rune(text)
	out := make([]int, len(r))
	for i, c := range r {
		out[i] = int(c)
	}
	return out, nil
}

func (f *fakeEngine) Decode(tokens []int) (string, error) {
	r := make([]rune, len(tokens))
	for i, c := range tokens {
		r[i] = rune(c)
	}
	return string(r), nil
}

func (f *fakeEngine) Reload(ctx context.Context, spec types.ModelSpec, _ LoadParams, progress func(Progress)) error {
	f.mu.Lock()
	f.reloads = append(f.reloads, spec.ID)
	gate, err, texts := f.reloadGate, f.reloadErr, f.progress
	f.mu.Unlock()
	for _, txt := range texts {
		progress(Progress{Text: txt})
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeEngine) ResetChat() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeEngine) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (Usage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	gate, deltas, err := f.chatGate, f.deltas, f.chatErr
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Usage{}, ctx.Err()
		}
	}
	for _, d := range deltas {
		if err := onDelta(d); err != nil {
			return Usage{}, err
		}
	}
	return Usage{CompletionTokens: len(deltas), TotalTokens: len(deltas)}, err
}

func (f *fakeEngine) reloadIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reloads...)
}

func newTestSession(t *testing.T, eng Engine, mutate func(*Config)) *Session {
	t.Helper()
	reg, err := registry.New([]types.ModelSpec{smallModel, largeModel}, "")
	if err != nil { t.Fatalf("registry: %v", err) }
	cfg := Config{Engine: eng, Registry: reg, SwitchDebounce: 20 * time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(context.Background(), cfg)
	if err != nil { t.Fatalf("new session: %v", err) }
	t.Cleanup(s.Close)
	return s
}

func startReady(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Start(testCtx(t)); err != nil { t.Fatalf("start: %v", err) }
	waitFor(t, "session ready", s.Ready)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("disk on fire") }
func (failingStore) Set(context.Context, string, string) error  { return errors.New("disk on fire") }

var _ prefs.Store = failingStore{}
