// Package citation rewrites source markers in a model summary into numbered
// markdown links and collects the pages they refer to.
package citation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"libreplexity/pkg/types"
)

// FaviconURL is the icon service template; %s is the page host.
const FaviconURL = "https://www.google.com/s2/favicons?domain=%s&sz=128"

// Document is the metadata known about a scraped page.
type Document struct {
	URL   string
	Title string
}

// Result is a resolved summary.
type Result struct {
	Text        string
	UsedSources []types.Source
}

// Resolver turns raw summaries into cited text.
type Resolver struct {
	log zerolog.Logger
}

// New returns a Resolver logging through logger.
func New(logger zerolog.Logger) *Resolver { return &Resolver{log: logger} }

// Resolve uses the global logger.
func Resolve(raw string, sources []string, docs []Document) Result {
	return (&Resolver{log: log.Logger}).Resolve(raw, sources, docs)
}

// Resolve trims raw and rewrites every "[source N]" or "<sourceN>" marker (any case, with
// or without the space) for N = i+1 into "[[k]](sources[i])" where k is the
// position of sources[i] among the cited pages. Sources are visited in
// index order. Uncited sources and sources with no matching document are
// skipped.
func (r *Resolver) Resolve(raw string, sources []string, docs []Document) Result {
	text := strings.TrimSpace(raw)
	var used []types.Source
	for i, src := range sources {
		re := markerRe(i + 1)
		if !re.MatchString(text) {
			continue
		}
		doc, ok := findDoc(docs, src)
		if !ok {
			r.log.Warn().Str("url", src).Int("source", i+1).Msg("no scraped page for cited source")
			continue
		}
		host := hostOf(src)
		used = append(used, types.Source{
			URL:          src,
			Title:        doc.Title,
			Icon:         fmt.Sprintf(FaviconURL, host),
			Origin:       host,
			DisplayIndex: len(used) + 1,
		})
		text = re.ReplaceAllLiteralString(text, fmt.Sprintf("[[%d]](%s)", len(used), src))
	}
	return Result{Text: text, UsedSources: used}
}

func markerRe(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(?:\[|<)source\s?%d(?:\]|>)`, n))
}

func findDoc(docs []Document, u string) (Document, bool) {
	for _, d := range docs {
		if d.URL == u {
			return d, true
		}
	}
	return Document{}, false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(raw, "//")
	}
	return u.Host
}
