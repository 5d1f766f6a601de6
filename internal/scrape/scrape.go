// Package scrape fetches pages, extracts their main content and renders it
// as markdown.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"libreplexity/internal/relay"
)

// Scraper returns the raw HTML of a page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// Article is the distilled form of a page.
type Article struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	TextContent string `json:"text_content,omitempty"`
}

// Distiller extracts an Article from page HTML.
type Distiller interface {
	Distill(pageURL, html string) (*Article, error)
}

// ErrNoContent is returned when a page has no readable main content.
var ErrNoContent = errors.New("scrape: no readable content")

// RelayScraper fetches pages through a relay.Doer.
type RelayScraper struct {
	doer      relay.Doer
	userAgent string
}

func NewScraper(doer relay.Doer, userAgent string) *RelayScraper {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; libreplexity/1.0)"
	}
	return &RelayScraper{doer: doer, userAgent: userAgent}
}

// Scrape implements Scraper.
func (s *RelayScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	body, err := s.doer.Do(ctx, relay.Request{
		URL:    pageURL,
		Method: "GET",
		Headers: map[string]string{
			"User-Agent": s.userAgent,
			"Accept":     "text/html,application/xhtml+xml",
		},
	})
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	return body, nil
}

// Readability distills pages with go-readability.
type Readability struct{}

// Distill implements Distiller.
func (Readability) Distill(pageURL, html string) (*Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("distill: bad url %q: %w", pageURL, err)
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return nil, fmt.Errorf("distill %s: %w", pageURL, err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, ErrNoContent
	}
	return &Article{
		Title:       strings.TrimSpace(article.Title),
		Content:     article.Content,
		TextContent: strings.TrimSpace(article.TextContent),
	}, nil
}
