package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libreplexity/internal/httpapi"
	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/internal/prefs"
	"libreplexity/internal/registry"
	"libreplexity/internal/relay"
	"libreplexity/internal/scrape"
	"libreplexity/internal/search"
	"libreplexity/pkg/types"
)

// runeTokenizer treats every rune as a token so tests never load BPE files.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) ([]int, error) {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out, nil
}

func (runeTokenizer) Decode(tokens []int) (string, error) {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteRune(rune(t))
	}
	return b.String(), nil
}

func article(title, body string) string {
	p := strings.Repeat(body+" ", 6)
	return "<html><head><title>" + title + "</title></head><body><article><h1>" + title +
		"</h1><p>" + p + "</p><p>" + p + "</p></article></body></html>"
}

// newWeb serves a fake search engine, its autocomplete and two articles.
func newWeb(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
<div class="result result--ad"><a class="result__a" href="%[1]s/ad">Ad</a></div>
<div class="result"><a class="result__a" href="https://www.youtube.com/watch?v=x">Video</a></div>
<div class="result"><a class="result__a" href="%[1]s/page/water">Water</a></div>
<div class="result"><a class="result__a" href="%[1]s/page/ice">Ice</a></div>
<div class="result"><a class="result__a" href="%[1]s/page/missing">Missing</a></div>
</body></html>`, base)
	})
	mux.HandleFunc("/ac", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		fmt.Fprintf(w, `[{"phrase":%q},{"phrase":%q}]`, q+" is wet", q+" cycle")
	})
	mux.HandleFunc("/page/water", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, article("Why water is wet", "Water molecules cling to surfaces through adhesion and cohesion."))
	})
	mux.HandleFunc("/page/ice", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, article("Ice facts", "Frozen water forms a crystal lattice that is less dense than the liquid."))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	base = srv.URL
	return srv
}

// newLLM serves an OpenAI-compatible model list and streaming chat.
func newLLM(t *testing.T, model string, chunks []string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","data":[{"id":%q,"object":"model","created":1,"owned_by":"local"}]}`, model)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", model, c)
			fl.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fl.Flush()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	api      *httptest.Server
	pipeline *pipeline.Pipeline
	session  *inference.Session
}

// newStack wires the real components: relay server and client, DuckDuckGo
// search, readability, the OpenAI engine and the HTTP API.
func newStack(t *testing.T, chunks []string) *stack {
	t.Helper()
	web := newWeb(t)
	llm := newLLM(t, "small-1b", chunks)

	rh := relay.NewHandler(relay.Options{Timeout: 2 * time.Second})
	relaySrv := httptest.NewServer(rh.Router())
	t.Cleanup(relaySrv.Close)
	doer := relay.NewClient(relaySrv.URL, nil)

	reg, err := registry.New([]types.ModelSpec{{ID: "small-1b", SizeClass: types.SizeSmall}}, "")
	if err != nil { t.Fatalf("registry: %v", err) }
	engine := inference.NewOpenAIEngine(inference.OpenAIConfig{BaseURL: llm.URL + "/v1/", MaxRetries: -1, Tokenizer: runeTokenizer{}})
	sess, err := inference.New(context.Background(), inference.Config{Engine: engine, Registry: reg, Prefs: prefs.NewMemoryStore()})
	if err != nil { t.Fatalf("session: %v", err) }
	t.Cleanup(sess.Close)
	if err := sess.Start(context.Background()); err != nil { t.Fatalf("start: %v", err) }

	ddg := search.NewDuckDuckGo(doer, search.DuckDuckGoOptions{HTMLEndpoint: web.URL + "/html/", ACEndpoint: web.URL + "/ac"})
	p, err := pipeline.New(pipeline.Config{
		Searcher:      ddg,
		Autocompleter: search.NewCachedAutocompleter(ddg, search.NewLocalLRU(16), time.Minute, nil),
		Scraper:       scrape.NewScraper(doer, ""),
		Distiller:     scrape.Readability{},
		Summarizer:    sess,
		ScrapeTimeout: 2 * time.Second,
		Throttle:      20 * time.Millisecond,
	})
	if err != nil { t.Fatalf("pipeline: %v", err) }
	t.Cleanup(p.Close)

	api := httptest.NewServer(httpapi.NewMux(&httpapi.Backend{Searches: p, Models: sess}))
	t.Cleanup(api.Close)
	return &stack{api: api, pipeline: p, session: sess}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil { t.Fatalf("new req: %v", err) }
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do req: %v", err) }
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil { t.Fatalf("new req: %v", err) }
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do req: %v", err) }
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// readStream collects NDJSON run views until the server closes the stream.
func readStream(t *testing.T, url string) []types.RunView {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil { t.Fatalf("new req: %v", err) }
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do req: %v", err) }
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK { t.Fatalf("stream status=%d", resp.StatusCode) }
	var views []types.RunView
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		var v types.RunView
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil { t.Fatalf("decode frame %q: %v", sc.Text(), err) }
		views = append(views, v)
	}
	return views
}

func waitReady(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if resp, _ := httpGet(t, base+"/readyz"); resp.StatusCode == http.StatusOK {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never became ready")
}
