package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"libreplexity/internal/relay"
)

const (
	DefaultDuckDuckGoHTML = "https://html.duckduckgo.com/html/"
	DefaultDuckDuckGoAC   = "https://duckduckgo.com/ac/"
)

// DuckDuckGo scrapes the HTML results page and queries the ac/ suggestion
// endpoint. Requests go through a relay.Doer.
type DuckDuckGo struct {
	doer       relay.Doer
	htmlURL    string
	acURL      string
	locale     string
	maxResults int
}

// DuckDuckGoOptions configures DuckDuckGo. Empty endpoints use the public ones.
type DuckDuckGoOptions struct {
	HTMLEndpoint string
	ACEndpoint   string
	Locale       string
	MaxResults   int
}

func NewDuckDuckGo(doer relay.Doer, opts DuckDuckGoOptions) *DuckDuckGo {
	d := &DuckDuckGo{
		doer:       doer,
		htmlURL:    opts.HTMLEndpoint,
		acURL:      opts.ACEndpoint,
		locale:     opts.Locale,
		maxResults: opts.MaxResults,
	}
	if d.htmlURL == "" {
		d.htmlURL = DefaultDuckDuckGoHTML
	}
	if d.acURL == "" {
		d.acURL = DefaultDuckDuckGoAC
	}
	if d.locale == "" {
		d.locale = "wt-wt"
	}
	return d
}

// kp values understood by the HTML endpoint.
func ddgSafe(s SafeSearch) string {
	switch s {
	case SafeStrict:
		return "1"
	case SafeOff:
		return "-2"
	default:
		return "-1"
	}
}

// Search implements Searcher.
func (d *DuckDuckGo) Search(ctx context.Context, query string, safe SafeSearch) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("kl", d.locale)
	q.Set("kp", ddgSafe(safe))
	body, err := d.doer.Do(ctx, relay.Request{
		URL:    d.htmlURL + "?" + q.Encode(),
		Method: "GET",
		Headers: map[string]string{
			"User-Agent": defaultUserAgent,
			"Accept":     "text/html",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	return parseDuckDuckGoHTML(body, d.maxResults)
}

func parseDuckDuckGoHTML(body string, max int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: parse: %w", err)
	}
	var out []Result
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Closest(".result--ad").Length() > 0 {
			return true
		}
		href, _ := s.Attr("href")
		u := resolveRedirect(href)
		if u == "" {
			return true
		}
		out = append(out, Result{URL: u, Title: strings.TrimSpace(s.Text())})
		return max <= 0 || len(out) < max
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("duckduckgo search: %w", ErrNoResults)
	}
	return out, nil
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if (u.Scheme == "http" || u.Scheme == "https") && !strings.HasSuffix(u.Host, "duckduckgo.com") {
		return u.String()
	}
	return ""
}

// Suggest implements Autocompleter.
func (d *DuckDuckGo) Suggest(ctx context.Context, query, locale string) ([]string, error) {
	if locale == "" {
		locale = d.locale
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("kl", locale)
	body, err := d.doer.Do(ctx, relay.Request{
		URL:     d.acURL + "?" + q.Encode(),
		Method:  "GET",
		Headers: map[string]string{"User-Agent": defaultUserAgent, "Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo autocomplete: %w", err)
	}
	var raw []struct {
		Phrase string `json:"phrase"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("duckduckgo autocomplete: decode: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r.Phrase != "" {
			out = append(out, r.Phrase)
		}
	}
	return out, nil
}
