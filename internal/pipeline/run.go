package pipeline

import (
	"libreplexity/internal/citation"
	"libreplexity/internal/scrape"
	"libreplexity/pkg/types"
)

// Status texts shown while a run is active.
const (
	StatusSearching = "Searching"
	StatusFetching  = "Fetching websites"
	StatusReading   = "Reading pages"
)

// ScrapedDoc is a candidate page that survived scraping and distillation.
type ScrapedDoc struct {
	URL       string
	HTML      string
	Distilled *scrape.Article
}

// Run is an immutable snapshot of the current search. ScrapedDocs and
// Markdowns are index-aligned: Markdowns[i] is cited as "source i+1".
type Run struct {
	ID            string
	Generation    uint64
	Query         string
	CandidateURLs []string
	ScrapedDocs   []ScrapedDoc
	Markdowns     []string
	RawSummary    string
	StatusText    string
	InProgress    bool
	Fetching      bool
	Err           string
	Suggestions   []string
}

// Settled reports whether the run has started and is no longer fetching.
func (r Run) Settled() bool { return r.Generation > 0 && !r.Fetching }

func (r Run) clone() Run {
	out := r
	out.CandidateURLs = append([]string(nil), r.CandidateURLs...)
	out.ScrapedDocs = append([]ScrapedDoc(nil), r.ScrapedDocs...)
	out.Markdowns = append([]string(nil), r.Markdowns...)
	out.Suggestions = append([]string(nil), r.Suggestions...)
	return out
}

// citationInputs pairs each rendered page with its source URL.
func (r Run) citationInputs() ([]string, []citation.Document) {
	n := min(len(r.ScrapedDocs), len(r.Markdowns))
	sources := make([]string, 0, n)
	docs := make([]citation.Document, 0, n)
	for _, d := range r.ScrapedDocs[:n] {
		sources = append(sources, d.URL)
		title := ""
		if d.Distilled != nil {
			title = d.Distilled.Title
		}
		docs = append(docs, citation.Document{URL: d.URL, Title: title})
	}
	return sources, docs
}

// View projects a run and its resolved summary for clients.
func View(r Run, res citation.Result) types.RunView {
	v := types.RunView{
		ID:            r.ID,
		Query:         r.Query,
		Status:        r.StatusText,
		Fetching:      r.Fetching,
		InProgress:    r.InProgress,
		Error:         r.Err,
		CandidateURLs: r.CandidateURLs,
		Summary:       res.Text,
		Sources:       res.UsedSources,
	}
	for _, d := range r.ScrapedDocs {
		v.Pages = append(v.Pages, d.URL)
	}
	return v
}
