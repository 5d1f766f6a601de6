package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"libreplexity/internal/relay"
)

const DefaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave web search API.
type Brave struct {
	doer     relay.Doer
	apiKey   string
	endpoint string
	count    int
}

func NewBrave(doer relay.Doer, apiKey, endpoint string, count int) *Brave {
	if endpoint == "" {
		endpoint = DefaultBraveEndpoint
	}
	if count <= 0 {
		count = 20
	}
	return &Brave{doer: doer, apiKey: apiKey, endpoint: endpoint, count: count}
}

// Search implements Searcher.
func (b *Brave) Search(ctx context.Context, query string, safe SafeSearch) ([]Result, error) {
	if b.apiKey == "" {
		return nil, errors.New("brave search: api key is not configured")
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(b.count))
	q.Set("safesearch", safe.String())
	body, err := b.doer.Do(ctx, relay.Request{
		URL:    b.endpoint + "?" + q.Encode(),
		Method: "GET",
		Headers: map[string]string{
			"Accept":               "application/json",
			"X-Subscription-Token": b.apiKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("brave search: decode: %w", err)
	}
	out := make([]Result, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{URL: r.URL, Title: r.Title})
	}
	return out, nil
}
