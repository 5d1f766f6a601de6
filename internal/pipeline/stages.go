package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"libreplexity/internal/scrape"
	"libreplexity/internal/search"
)

// videoHosts never yield readable pages.
var videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com", "dailymotion.com", "v.redd.it", "tiktok.com"}

// FilterCandidates drops video URLs and keeps at most max in rank order.
func FilterCandidates(results []search.Result, max int) []string {
	out := make([]string, 0, max)
	for _, r := range results {
		if len(out) == max {
			break
		}
		if isVideo(r.URL) {
			continue
		}
		out = append(out, r.URL)
	}
	return out
}

func isVideo(u string) bool {
	for _, h := range videoHosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}

// execute is the frame's fetch function.
func (p *Pipeline) execute(ctx context.Context) (Run, error) {
	rp, _ := ctx.Value(runKey{}).(runParams)
	log := p.log.With().Str("run", rp.id).Logger()
	start := time.Now()

	out, err := p.stages(ctx, rp, log)
	cancelled := ctx.Err() != nil
	runsTotal.WithLabelValues(runOutcome(err, cancelled)).Inc()
	switch {
	case cancelled:
		p.mutate(rp.seq, func(r *Run) {
			r.RawSummary = ""
			r.InProgress = false
			r.StatusText = ""
		})
		log.Info().Dur("took", time.Since(start)).Msg("search cancelled")
		return Run{}, nil
	case err != nil:
		p.mutate(rp.seq, func(r *Run) {
			r.CandidateURLs = nil
			r.ScrapedDocs = nil
			r.Markdowns = nil
			r.RawSummary = ""
			r.StatusText = ""
			r.InProgress = false
		})
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("search failed")
		return Run{}, err
	}
	log.Info().Int("pages", len(out.Markdowns)).Dur("took", time.Since(start)).Msg("search done")
	return out, nil
}

func (p *Pipeline) stages(ctx context.Context, rp runParams, log zerolog.Logger) (Run, error) {
	if err := sleepCtx(ctx, p.cfg.SearchDelay); err != nil {
		return Run{}, err
	}

	t := time.Now()
	results, err := p.searchWithRetry(ctx, rp.query, log)
	stageDuration.WithLabelValues("search").Observe(time.Since(t).Seconds())
	if err != nil {
		return Run{}, err
	}
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	candidates := FilterCandidates(results, p.cfg.MaxCandidates)
	p.mutate(rp.seq, func(r *Run) {
		r.CandidateURLs = candidates
		r.StatusText = StatusFetching
	})

	t = time.Now()
	pages := p.scrapeAll(ctx, candidates, log)
	stageDuration.WithLabelValues("scrape").Observe(time.Since(t).Seconds())
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}

	t = time.Now()
	docs := p.distillAll(candidates, pages, log)
	stageDuration.WithLabelValues("distill").Observe(time.Since(t).Seconds())
	if len(docs) == 0 {
		return Run{}, &NoContentFailure{Query: rp.query, Candidates: len(candidates)}
	}
	markdowns := make([]string, len(docs))
	for i, d := range docs {
		md, err := scrape.PageMarkdown(d.Distilled.Title, d.Distilled.Content)
		if err != nil {
			log.Warn().Err(err).Str("url", d.URL).Msg("markdown conversion failed; using plain text")
			md = d.Distilled.TextContent
		}
		markdowns[i] = md
	}
	p.mutate(rp.seq, func(r *Run) {
		r.ScrapedDocs = docs
		r.Markdowns = markdowns
		r.RawSummary = ""
		r.StatusText = StatusReading
		r.InProgress = true
	})

	t = time.Now()
	_, err = p.cfg.Summarizer.Summarize(ctx, rp.query, markdowns, func(tok string) {
		p.mutate(rp.seq, func(r *Run) {
			r.StatusText = ""
			r.RawSummary += tok
		})
	})
	stageDuration.WithLabelValues("summarize").Observe(time.Since(t).Seconds())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Run{}, ctxErr
	}
	if err != nil {
		return Run{}, err
	}

	var final Run
	if !p.mutate(rp.seq, func(r *Run) {
		r.InProgress = false
		r.StatusText = ""
		final = r.clone()
	}) {
		return Run{}, context.Canceled
	}
	// the frame observer clears Fetching once this returns
	final.Fetching = false
	return final, nil
}

// searchWithRetry perturbs the query with a trailing space on every retry.
func (p *Pipeline) searchWithRetry(ctx context.Context, query string, log zerolog.Logger) ([]search.Result, error) {
	q := query
	var lastErr error
	for attempt := 1; attempt <= p.cfg.SearchAttempts; attempt++ {
		res, err := p.cfg.Searcher.Search(ctx, q, p.cfg.SafeSearch)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("search attempt failed")
		q += " "
	}
	return nil, &SearchFailure{Query: query, Attempts: p.cfg.SearchAttempts, Err: lastErr}
}

// scrapeAll fetches every candidate concurrently. A page that fails or
// exceeds the per-page timeout yields "".
func (p *Pipeline) scrapeAll(ctx context.Context, urls []string, log zerolog.Logger) []string {
	pages := make([]string, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, p.cfg.ScrapeTimeout)
			defer cancel()
			html, err := scrapeWithin(sctx, p.cfg.Scraper, u)
			switch {
			case err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded):
				pagesTotal.WithLabelValues("timeout").Inc()
				log.Debug().Str("url", u).Msg("scrape timed out")
			case err != nil:
				pagesTotal.WithLabelValues("scrape_error").Inc()
				log.Debug().Err(err).Str("url", u).Msg("scrape failed")
			default:
				pages[i] = html
			}
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

// scrapeWithin returns as soon as ctx ends, even when the scraper itself
// keeps blocking.
func scrapeWithin(ctx context.Context, s scrape.Scraper, u string) (string, error) {
	type result struct {
		html string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		html, err := s.Scrape(ctx, u)
		ch <- result{html, err}
	}()
	select {
	case r := <-ch:
		return r.html, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// distillAll keeps at most MaxPages readable pages in candidate order.
func (p *Pipeline) distillAll(urls, pages []string, log zerolog.Logger) []ScrapedDoc {
	var docs []ScrapedDoc
	for i, html := range pages {
		if len(docs) == p.cfg.MaxPages {
			break
		}
		if strings.TrimSpace(html) == "" {
			pagesTotal.WithLabelValues("empty").Inc()
			continue
		}
		article, err := p.cfg.Distiller.Distill(urls[i], html)
		if err != nil || article == nil {
			pagesTotal.WithLabelValues("distill_error").Inc()
			log.Debug().Err(err).Str("url", urls[i]).Msg("distill failed")
			continue
		}
		pagesTotal.WithLabelValues("ok").Inc()
		docs = append(docs, ScrapedDoc{URL: urls[i], HTML: html, Distilled: article})
	}
	return docs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
