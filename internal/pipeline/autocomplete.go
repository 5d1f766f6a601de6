package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoAutocomplete is returned when no Autocompleter is configured.
var ErrNoAutocomplete = errors.New("pipeline: autocomplete is not configured")

// SetQuery records the query being typed and schedules a suggestion
// refresh on the trailing edge of the throttle window.
func (p *Pipeline) SetQuery(q string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = q
	if p.closed || p.cfg.Autocompleter == nil || p.acTimer != nil {
		return
	}
	p.acTimer = time.AfterFunc(p.cfg.Throttle, p.refreshSuggestions)
}

// Input returns the last query passed to SetQuery.
func (p *Pipeline) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

func (p *Pipeline) refreshSuggestions() {
	p.mu.Lock()
	p.acTimer = nil
	q, fetching, closed := p.input, p.run.Fetching, p.closed
	if closed {
		p.mu.Unlock()
		return
	}
	if strings.TrimSpace(q) == "" {
		p.run.Suggestions = nil
		p.publishLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	// suggestions are frozen while a search is running
	if fetching {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), suggestTimeout)
	defer cancel()
	res, err := p.Suggest(ctx, q)
	if err != nil {
		p.log.Warn().Err(err).Str("query", q).Msg("autocomplete failed")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run.Fetching || p.closed {
		return
	}
	p.run.Suggestions = res
	p.publishLocked()
}

// Suggest returns at most MaxSuggestions completions for q.
func (p *Pipeline) Suggest(ctx context.Context, q string) ([]string, error) {
	if p.cfg.Autocompleter == nil {
		return nil, ErrNoAutocomplete
	}
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	res, err := p.cfg.Autocompleter.Suggest(ctx, q, p.cfg.Locale)
	if err != nil {
		return nil, err
	}
	if len(res) > p.cfg.MaxSuggestions {
		res = res[:p.cfg.MaxSuggestions]
	}
	return res, nil
}
