package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"libreplexity/internal/scrape"
	"libreplexity/internal/search"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results []search.Result
	failN   int
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ search.SafeSearch) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.queries) <= f.failN {
		return nil, errors.New("search backend unavailable")
	}
	return f.results, nil
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeScraper serves pages from a map; URLs in slow block until ctx ends,
// URLs in stuck sleep regardless of ctx.
type fakeScraper struct {
	pages map[string]string
	slow  map[string]bool
	stuck map[string]bool
	check func()
}

func (f *fakeScraper) Scrape(ctx context.Context, u string) (string, error) {
	if f.check != nil {
		f.check()
	}
	if f.slow[u] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.stuck[u] {
		time.Sleep(2 * time.Second)
		return page("late"), nil
	}
	html, ok := f.pages[u]
	if !ok {
		return "", errors.New("404")
	}
	return html, nil
}

// fakeDistiller titles each page after its URL and rejects "junk".
type fakeDistiller struct{}

func (fakeDistiller) Distill(u, html string) (*scrape.Article, error) {
	if strings.Contains(html, "junk") {
		return nil, scrape.ErrNoContent
	}
	return &scrape.Article{Title: "Title " + u, Content: html, TextContent: html}, nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	tokens []string
	err    error
	gate   chan struct{}
	calls  [][]string
	check  func()
}

func (f *fakeSummarizer) Summarize(ctx context.Context, query string, docs []string, onToken func(string)) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, docs)
	tokens, err, gate, check := f.tokens, f.err, f.gate, f.check
	f.mu.Unlock()
	if check != nil {
		check()
	}
	var out strings.Builder
	for i, tok := range tokens {
		if i == 1 && gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return out.String(), ctx.Err()
			}
		}
		out.WriteString(tok)
		onToken(tok)
	}
	if err != nil {
		return out.String(), err
	}
	return out.String(), ctx.Err()
}

func (f *fakeSummarizer) docs(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func page(body string) string {
	return "<html><body><p>" + body + "</p></body></html>"
}

type fixture struct {
	searcher   *fakeSearcher
	scraper    *fakeScraper
	summarizer *fakeSummarizer
	p          *Pipeline
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		searcher: &fakeSearcher{results: []search.Result{
			{URL: "https://a.example/1"},
			{URL: "https://www.youtube.com/watch?v=x"},
			{URL: "https://b.example/2"},
			{URL: "https://c.example/3"},
		}},
		scraper: &fakeScraper{pages: map[string]string{
			"https://a.example/1": page("alpha"),
			"https://b.example/2": page("bravo"),
			"https://c.example/3": page("charlie"),
		}},
		summarizer: &fakeSummarizer{tokens: []string{"Water ", "is wet ", "[source 2]"}},
	}
	cfg := Config{
		Searcher:      f.searcher,
		Scraper:       f.scraper,
		Distiller:     fakeDistiller{},
		Summarizer:    f.summarizer,
		ScrapeTimeout: 200 * time.Millisecond,
		Throttle:      30 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil { t.Fatalf("new pipeline: %v", err) }
	t.Cleanup(p.Close)
	f.p = p
	return f
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) settled(t *testing.T) Run {
	t.Helper()
	waitFor(t, "run to settle", func() bool { return f.p.Snapshot().Settled() })
	return f.p.Snapshot()
}
