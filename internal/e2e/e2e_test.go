package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"libreplexity/pkg/types"
)

// TestE2E_SearchToCitedSummary drives a search through the relay, the
// search engine, readability and the model server, then checks that the
// summary cites the pages that were actually read.
func TestE2E_SearchToCitedSummary(t *testing.T) {
	s := newStack(t, []string{"Water is wet ", "[source 1]", " and ice floats <source2>."})
	waitReady(t, s.api.URL)

	resp, body := httpPostJSON(t, s.api.URL+"/search", []byte(`{"query":"why is water wet"}`))
	if resp.StatusCode != http.StatusAccepted { t.Fatalf("status=%d body=%s", resp.StatusCode, body) }
	var started types.SearchStarted
	if err := json.Unmarshal(body, &started); err != nil { t.Fatalf("json: %v", err) }

	views := readStream(t, s.api.URL+"/search/stream")
	if len(views) == 0 { t.Fatalf("no frames streamed") }
	last := views[len(views)-1]
	if last.ID != started.ID || last.Fetching || last.InProgress { t.Fatalf("last frame not settled: %+v", last) }
	if last.Error != "" { t.Fatalf("run failed: %s", last.Error) }

	if len(last.CandidateURLs) != 3 { t.Fatalf("candidates=%v", last.CandidateURLs) }
	for _, u := range last.CandidateURLs {
		if strings.Contains(u, "youtube") || strings.HasSuffix(u, "/ad") { t.Fatalf("unfiltered candidate %s", u) }
	}
	if len(last.Pages) != 2 { t.Fatalf("pages=%v", last.Pages) }

	if !strings.Contains(last.Summary, "[[1]]("+last.Pages[0]+")") || !strings.Contains(last.Summary, "[[2]]("+last.Pages[1]+")") {
		t.Fatalf("summary not resolved against read pages: %q", last.Summary)
	}
	if len(last.Sources) != 2 || last.Sources[0].DisplayIndex != 1 { t.Fatalf("sources=%+v", last.Sources) }
	if !strings.Contains(strings.ToLower(last.Sources[0].Title), "water") { t.Fatalf("title=%q", last.Sources[0].Title) }

	_, body = httpGet(t, s.api.URL+"/search")
	var snap types.RunView
	if err := json.Unmarshal(body, &snap); err != nil { t.Fatalf("json: %v", err) }
	if snap.Summary != last.Summary { t.Fatalf("snapshot differs from last streamed frame") }
}

func TestE2E_AutocompleteThroughRelay(t *testing.T) {
	s := newStack(t, []string{"ok"})
	resp, body := httpGet(t, s.api.URL+"/autocomplete?q=water")
	if resp.StatusCode != http.StatusOK { t.Fatalf("status=%d body=%s", resp.StatusCode, body) }
	var ac types.AutocompleteResponse
	if err := json.Unmarshal(body, &ac); err != nil { t.Fatalf("json: %v", err) }
	if len(ac.Suggestions) != 2 || ac.Suggestions[0] != "water is wet" { t.Fatalf("suggestions=%v", ac.Suggestions) }
}

func TestE2E_ModelsAndStatus(t *testing.T) {
	s := newStack(t, []string{"ok"})
	waitReady(t, s.api.URL)

	_, body := httpGet(t, s.api.URL+"/models")
	var models types.ModelsResponse
	if err := json.Unmarshal(body, &models); err != nil { t.Fatalf("json: %v", err) }
	if len(models.Models) != 1 || models.Active != "small-1b" { t.Fatalf("models=%+v", models) }

	_, body = httpGet(t, s.api.URL+"/models/status")
	var st types.EngineStatus
	if err := json.Unmarshal(body, &st); err != nil { t.Fatalf("json: %v", err) }
	if st.State != "ready" || st.ActiveModel != "small-1b" { t.Fatalf("status=%+v", st) }

	// a settled engine answers the status stream with a single frame
	_, body = httpGet(t, s.api.URL+"/models/status/stream")
	if n := strings.Count(string(body), "\n"); n != 1 { t.Fatalf("status stream frames=%d body=%q", n, body) }

	resp, _ := httpPostJSON(t, s.api.URL+"/models/switch", []byte(`{"id":"nope"}`))
	if resp.StatusCode != http.StatusNotFound { t.Fatalf("unknown model status=%d", resp.StatusCode) }
	resp, _ = httpPostJSON(t, s.api.URL+"/models/switch", []byte(`{"size":"large"}`))
	if resp.StatusCode != http.StatusNotFound { t.Fatalf("missing size class status=%d", resp.StatusCode) }
}

func TestE2E_CancelKeepsPages(t *testing.T) {
	s := newStack(t, []string{"a", "b"})
	waitReady(t, s.api.URL)
	httpPostJSON(t, s.api.URL+"/search", []byte(`{"query":"water"}`))
	req, _ := http.NewRequest(http.MethodDelete, s.api.URL+"/search", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("delete: %v", err) }
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent { t.Fatalf("status=%d", resp.StatusCode) }

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r := s.pipeline.Snapshot(); !r.Fetching {
			if r.Err != "" { t.Fatalf("cancel reported an error: %s", r.Err) }
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run did not settle after cancel")
}
