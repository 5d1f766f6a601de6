// Package pipeline drives one search at a time through search, scrape,
// distill and summarize, publishing a snapshot after every state change.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"libreplexity/internal/citation"
	"libreplexity/internal/fetcher"
	"libreplexity/internal/scrape"
	"libreplexity/internal/search"
	"libreplexity/pkg/types"
)

// Summarizer streams an answer for query grounded on docs.
type Summarizer interface {
	Summarize(ctx context.Context, query string, docs []string, onToken func(string)) (string, error)
}

// Config wires a Pipeline. Zero numeric values take the defaults below.
type Config struct {
	Searcher      search.Searcher
	Autocompleter search.Autocompleter
	Scraper       scrape.Scraper
	Distiller     scrape.Distiller
	Summarizer    Summarizer

	SafeSearch     search.SafeSearch
	Locale         string
	SearchAttempts int
	// SearchDelay pauses before searching.
	SearchDelay    time.Duration
	ScrapeTimeout  time.Duration
	MaxCandidates  int
	MaxPages       int
	Throttle       time.Duration
	MaxSuggestions int
	Logger         *zerolog.Logger
}

const (
	defaultSearchAttempts = 3
	defaultScrapeTimeout  = 2500 * time.Millisecond
	defaultMaxCandidates  = 5
	defaultMaxPages       = 3
	defaultThrottle       = time.Second
	defaultMaxSuggestions = 5
	suggestTimeout        = 5 * time.Second
)

// Pipeline owns the current run. It is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	log      zerolog.Logger
	resolver *citation.Resolver
	frame    *fetcher.Fetcher[Run, Run]

	// ctl serializes run starts so frame generations track run sequence
	// numbers one to one.
	ctl    sync.Mutex
	cancel context.CancelFunc
	seq    uint64

	mu      sync.Mutex
	run     Run
	subs    map[chan Run]struct{}
	input   string
	acTimer *time.Timer
	closed  bool
}

type runKey struct{}

type runParams struct {
	seq   uint64
	id    string
	query string
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Searcher == nil || cfg.Scraper == nil || cfg.Distiller == nil || cfg.Summarizer == nil {
		return nil, errors.New("pipeline: searcher, scraper, distiller and summarizer are required")
	}
	if cfg.SearchAttempts <= 0 {
		cfg.SearchAttempts = defaultSearchAttempts
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = defaultScrapeTimeout
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = defaultThrottle
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = defaultMaxSuggestions
	}
	p := &Pipeline{cfg: cfg, log: zerolog.Nop(), subs: make(map[chan Run]struct{})}
	if cfg.Logger != nil {
		p.log = cfg.Logger.With().Str("component", "pipeline").Logger()
	}
	p.resolver = citation.New(p.log)
	p.frame = fetcher.NewSimple(p.execute, fetcher.Options{Name: "search", Logger: &p.log})
	p.frame.OnChange(p.onFrame)
	return p, nil
}

// Run starts a search for query and returns its id without waiting. Any
// run in flight is cancelled. The run outlives ctx but keeps its values.
func (p *Pipeline) Run(ctx context.Context, query string) string {
	_, rp := p.start(ctx, query)
	return rp.id
}

// Do runs a search and waits for it. If a newer run supersedes this one,
// Do returns the newer run's outcome. A cancelled run yields an empty Run
// and no error.
func (p *Pipeline) Do(ctx context.Context, query string) (Run, error) {
	call, rp := p.start(ctx, query)
	out, err := call.Wait(ctx)
	if ctx.Err() != nil {
		p.cancelIfCurrent(rp.seq)
		return Run{}, ctx.Err()
	}
	return out, err
}

func (p *Pipeline) start(ctx context.Context, query string) (*fetcher.Call[Run], runParams) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.seq++
	rp := runParams{seq: p.seq, id: uuid.NewString(), query: query}

	p.mu.Lock()
	p.run = Run{ID: rp.id, Generation: rp.seq, Query: query, StatusText: StatusSearching, Fetching: true}
	p.publishLocked()
	p.mu.Unlock()

	p.log.Info().Str("run", rp.id).Str("query", query).Msg("search started")
	return p.frame.Begin(context.WithValue(runCtx, runKey{}, rp), true), rp
}

// Cancel stops the run in flight, if any.
func (p *Pipeline) Cancel() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Pipeline) cancelIfCurrent(seq uint64) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	if p.seq == seq && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Close cancels the current run, stops autocomplete and closes subscribers.
func (p *Pipeline) Close() {
	p.Cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.acTimer != nil {
		p.acTimer.Stop()
		p.acTimer = nil
	}
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}

// onFrame mirrors the fetch state of the current generation into the run.
func (p *Pipeline) onFrame(st fetcher.State[Run]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st.Generation != p.run.Generation {
		return
	}
	p.run.Fetching = st.Fetching
	if st.Err != nil {
		p.run.Err = st.Err.Error()
	} else if st.Fetching {
		p.run.Err = ""
	}
	p.publishLocked()
}

// mutate applies fn to the run if seq is still current and publishes.
func (p *Pipeline) mutate(seq uint64, fn func(*Run)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.run.Generation {
		staleUpdates.Inc()
		return false
	}
	fn(&p.run)
	p.publishLocked()
	return true
}

// publishLocked hands the latest snapshot to every subscriber, replacing
// any snapshot it has not read yet.
func (p *Pipeline) publishLocked() {
	if len(p.subs) == 0 {
		return
	}
	snap := p.run.clone()
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe delivers the current snapshot and then every later one. Slow
// readers only see the latest. The channel closes when ctx is done.
func (p *Pipeline) Subscribe(ctx context.Context) <-chan Run {
	ch := make(chan Run, 1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- p.run.clone()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Snapshot returns the current run.
func (p *Pipeline) Snapshot() Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run.clone()
}

// Last returns the outcome of the latest settled run, fetcher.ErrNotReady
// while one is in flight, or its fatal error.
func (p *Pipeline) Last() (Run, error) { return p.frame.Read() }

// Resolve rewrites the citation markers of r.
func (p *Pipeline) Resolve(r Run) citation.Result {
	sources, docs := r.citationInputs()
	return p.resolver.Resolve(r.RawSummary, sources, docs)
}

// Summary resolves the current run.
func (p *Pipeline) Summary() citation.Result { return p.Resolve(p.Snapshot()) }

// View projects the current run for clients.
func (p *Pipeline) View() types.RunView {
	r := p.Snapshot()
	return View(r, p.Resolve(r))
}
