// Package search queries web search and autocomplete providers.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoResults is returned when a results page parses to nothing, which is
// how rate limiting and bot checks usually look.
var ErrNoResults = errors.New("search: no results")

// Result is one ranked search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SafeSearch is the content filtering level requested from a provider.
type SafeSearch int

const (
	SafeStrict SafeSearch = iota
	SafeModerate
	SafeOff
)

func (s SafeSearch) String() string {
	switch s {
	case SafeStrict:
		return "strict"
	case SafeOff:
		return "off"
	default:
		return "moderate"
	}
}

// ParseSafeSearch maps "strict", "moderate" and "off" to a SafeSearch.
func ParseSafeSearch(s string) (SafeSearch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return SafeStrict, nil
	case "moderate", "":
		return SafeModerate, nil
	case "off":
		return SafeOff, nil
	}
	return SafeModerate, fmt.Errorf("search: unknown safe search level %q", s)
}

// Searcher returns ranked results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, safe SafeSearch) ([]Result, error)
}

// Autocompleter returns query suggestions in provider order.
type Autocompleter interface {
	Suggest(ctx context.Context, query, locale string) ([]string, error)
}

// defaultUserAgent is sent to providers that reject clients without one.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
