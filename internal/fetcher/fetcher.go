// Package fetcher wraps a cancellable async data source so that only the
// result of the most recently started fetch is ever observable.
package fetcher

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotReady is returned by Read while a fetch is pending or before any
// data has been produced.
var ErrNotReady = errors.New("fetcher: data not ready")

// FetchFunc produces a raw value. Implementations should honour ctx.
type FetchFunc[Raw any] func(ctx context.Context) (Raw, error)

// State is an immutable view of a fetcher.
type State[T any] struct {
	Fetching   bool
	HasData    bool
	Data       T
	Err        error
	Generation uint64
}

// Options configures a Fetcher.
type Options struct {
	// Name is attached to log lines.
	Name string
	// AutoFetch starts a fetch in the background at construction.
	AutoFetch bool
	// DropPreviousData clears data when a new fetch starts. By default the
	// previous data stays visible until the new fetch completes.
	DropPreviousData bool
	Logger           *zerolog.Logger
}

// Fetcher is a generation-guarded async value.
type Fetcher[T, Raw any] struct {
	fetch FetchFunc[Raw]
	post  func(Raw) T
	keep  bool
	log   zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	fetching bool
	hasData  bool
	data     T
	err      error
	inflight *Call[T]
	observer func(State[T])
}

// Call is a handle on one started (or joined) fetch.
type Call[T any] struct {
	gen    uint64
	done   chan struct{}
	settle func(*Call[T]) (*Call[T], T, error)
}

// New builds a Fetcher that post-processes raw values with post.
func New[T, Raw any](fetch FetchFunc[Raw], post func(Raw) T, opts Options) *Fetcher[T, Raw] {
	f := &Fetcher[T, Raw]{
		fetch: fetch,
		post:  post,
		keep:  !opts.DropPreviousData,
		log:   zerolog.Nop(),
	}
	if opts.Logger != nil {
		f.log = opts.Logger.With().Str("fetcher", opts.Name).Logger()
	}
	if opts.AutoFetch {
		f.Begin(context.Background(), false)
	}
	return f
}

// NewSimple builds a Fetcher whose data is the raw value itself.
func NewSimple[T any](fetch FetchFunc[T], opts Options) *Fetcher[T, T] {
	return New(fetch, func(v T) T { return v }, opts)
}

// OnChange registers fn to be called with the new state whenever the
// current generation starts or settles. Set it before the first fetch.
func (f *Fetcher[T, Raw]) OnChange(fn func(State[T])) {
	f.mu.Lock()
	f.observer = fn
	f.mu.Unlock()
}

// Get returns cached data, or starts a fetch when force is set or nothing is
// cached and no fetch is pending. It blocks until the latest generation
// settles or ctx is done.
func (f *Fetcher[T, Raw]) Get(ctx context.Context, force bool) (T, error) {
	return f.Begin(ctx, force).Wait(ctx)
}

// Begin is the non-blocking half of Get. A forced Begin always starts a new
// generation and the result of any older in-flight fetch is discarded.
func (f *Fetcher[T, Raw]) Begin(ctx context.Context, force bool) *Call[T] {
	f.mu.Lock()
	if !force && f.inflight != nil {
		c := f.inflight
		f.mu.Unlock()
		return c
	}
	if !force && f.hasData {
		c := &Call[T]{gen: f.gen, done: make(chan struct{}), settle: f.settle}
		close(c.done)
		f.mu.Unlock()
		return c
	}
	f.gen++
	c := &Call[T]{gen: f.gen, done: make(chan struct{}), settle: f.settle}
	f.inflight = c
	f.fetching = true
	f.err = nil
	if !f.keep {
		var zero T
		f.data, f.hasData = zero, false
	}
	st, obs := f.stateLocked(), f.observer
	f.mu.Unlock()

	f.log.Debug().Uint64("gen", c.gen).Msg("fetch started")
	if obs != nil {
		obs(st)
	}
	go f.run(ctx, c)
	return c
}

func (f *Fetcher[T, Raw]) run(ctx context.Context, c *Call[T]) {
	raw, err := f.fetch(ctx)

	f.mu.Lock()
	if c.gen != f.gen {
		f.mu.Unlock()
		f.log.Debug().Uint64("gen", c.gen).Msg("discarding stale result")
		close(c.done)
		return
	}
	f.inflight = nil
	f.fetching = false
	if err != nil {
		var zero T
		f.data, f.hasData, f.err = zero, false, err
	} else {
		f.data, f.hasData, f.err = f.post(raw), true, nil
	}
	st, obs := f.stateLocked(), f.observer
	f.mu.Unlock()

	if err != nil {
		f.log.Debug().Err(err).Uint64("gen", c.gen).Msg("fetch failed")
	}
	close(c.done)
	if obs != nil {
		obs(st)
	}
}

// settle is called once c is done. If c was superseded it returns the
// newer call to follow.
func (f *Fetcher[T, Raw]) settle(c *Call[T]) (*Call[T], T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight != nil && f.inflight != c {
		var zero T
		return f.inflight, zero, nil
	}
	if f.err != nil {
		var zero T
		return nil, zero, f.err
	}
	return nil, f.data, nil
}

// Read returns the current data without fetching.
func (f *Fetcher[T, Raw]) Read() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if f.inflight != nil {
		return zero, ErrNotReady
	}
	if f.err != nil {
		return zero, f.err
	}
	if !f.hasData {
		return zero, ErrNotReady
	}
	return f.data, nil
}

// State returns a snapshot of the fetcher.
func (f *Fetcher[T, Raw]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Fetcher[T, Raw]) stateLocked() State[T] {
	return State[T]{
		Fetching:   f.fetching,
		HasData:    f.hasData,
		Data:       f.data,
		Err:        f.err,
		Generation: f.gen,
	}
}

// Generation is the generation this call started or joined.
func (c *Call[T]) Generation() uint64 { return c.gen }

// Done is closed when this call's fetch has returned.
func (c *Call[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the latest generation settles and returns its outcome.
// A superseded call follows the newer generation instead of returning its
// own stale result.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	cur := c
	for {
		select {
		case <-cur.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		next, data, err := cur.settle(cur)
		if next == nil {
			return data, err
		}
		cur = next
	}
}
