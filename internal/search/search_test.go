package search

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"libreplexity/internal/relay"
)

type fakeDoer struct {
	mu   sync.Mutex
	body string
	err  error
	reqs []relay.Request
}

func (f *fakeDoer) Do(_ context.Context, req relay.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.body, f.err
}

func (f *fakeDoer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

const ddgPage = `<html><body>
<div class="result results_links results_links_deep result--ad">
  <a class="result__a" href="https://duckduckgo.com/y.js?ad_domain=shop.example">Buy stuff</a>
</div>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FWater&amp;rut=abc">Water - <b>Wikipedia</b></a></h2>
</div>
<div class="result web-result">
  <a class="result__a" href="https://www.usgs.gov/water">USGS Water</a>
</div>
<div class="result web-result">
  <a class="result__a" href="/html/?q=more">More</a>
</div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	doer := &fakeDoer{body: ddgPage}
	d := NewDuckDuckGo(doer, DuckDuckGoOptions{Locale: "us-en"})
	got, err := d.Search(context.Background(), "is water wet", SafeStrict)
	if err != nil { t.Fatalf("search: %v", err) }
	if len(got) != 2 { t.Fatalf("results = %+v", got) }
	if got[0].URL != "https://en.wikipedia.org/wiki/Water" || got[0].Title != "Water - Wikipedia" { t.Fatalf("first = %+v", got[0]) }
	if got[1].URL != "https://www.usgs.gov/water" { t.Fatalf("second = %+v", got[1]) }

	u, err := url.Parse(doer.reqs[0].URL)
	if err != nil { t.Fatalf("parse request url: %v", err) }
	if u.Query().Get("q") != "is water wet" || u.Query().Get("kp") != "1" || u.Query().Get("kl") != "us-en" {
		t.Fatalf("request url = %s", doer.reqs[0].URL)
	}
	if doer.reqs[0].Headers["User-Agent"] == "" { t.Fatalf("missing user agent") }
}

func TestDuckDuckGo_SearchMaxResults(t *testing.T) {
	d := NewDuckDuckGo(&fakeDoer{body: ddgPage}, DuckDuckGoOptions{MaxResults: 1})
	got, err := d.Search(context.Background(), "q", SafeModerate)
	if err != nil || len(got) != 1 { t.Fatalf("got %v %v", got, err) }
}

func TestDuckDuckGo_SearchError(t *testing.T) {
	d := NewDuckDuckGo(&fakeDoer{err: errors.New("dial tcp: refused")}, DuckDuckGoOptions{})
	if _, err := d.Search(context.Background(), "q", SafeOff); err == nil { t.Fatalf("expected error") }
}

func TestDuckDuckGo_SearchEmptyPageIsError(t *testing.T) {
	anomaly := `<html><body><div class="anomaly-modal">Unfortunately, bots use DuckDuckGo too.</div></body></html>`
	d := NewDuckDuckGo(&fakeDoer{body: anomaly}, DuckDuckGoOptions{})
	got, err := d.Search(context.Background(), "q", SafeModerate)
	if !errors.Is(err, ErrNoResults) || got != nil { t.Fatalf("got %v %v", got, err) }
}

func TestDuckDuckGo_Suggest(t *testing.T) {
	doer := &fakeDoer{body: `[{"phrase":"why is the sky blue"},{"phrase":""},{"phrase":"why is the sky blue reddit"}]`}
	d := NewDuckDuckGo(doer, DuckDuckGoOptions{})
	got, err := d.Suggest(context.Background(), "why is the sky", "")
	if err != nil { t.Fatalf("suggest: %v", err) }
	if len(got) != 2 || got[0] != "why is the sky blue" { t.Fatalf("got %v", got) }
	u, _ := url.Parse(doer.reqs[0].URL)
	if u.Query().Get("kl") != "wt-wt" { t.Fatalf("locale not defaulted: %s", doer.reqs[0].URL) }

	doer.body = "not json"
	if _, err := d.Suggest(context.Background(), "x", "en"); err == nil { t.Fatalf("expected decode error") }
}

func TestBrave_Search(t *testing.T) {
	doer := &fakeDoer{body: `{"web":{"results":[{"title":"A","url":"https://a.example"},{"title":"no url"},{"title":"B","url":"https://b.example"}]}}`}
	b := NewBrave(doer, "key-1", "", 0)
	got, err := b.Search(context.Background(), "q", SafeOff)
	if err != nil { t.Fatalf("search: %v", err) }
	if len(got) != 2 || got[1].URL != "https://b.example" { t.Fatalf("got %+v", got) }
	if doer.reqs[0].Headers["X-Subscription-Token"] != "key-1" { t.Fatalf("token header missing") }
	u, _ := url.Parse(doer.reqs[0].URL)
	if u.Query().Get("safesearch") != "off" { t.Fatalf("url = %s", doer.reqs[0].URL) }

	if _, err := NewBrave(doer, "", "", 0).Search(context.Background(), "q", SafeOff); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestParseSafeSearch(t *testing.T) {
	for in, want := range map[string]SafeSearch{"strict": SafeStrict, "Moderate": SafeModerate, "": SafeModerate, "off": SafeOff} {
		got, err := ParseSafeSearch(in)
		if err != nil || got != want { t.Fatalf("%q => %v %v", in, got, err) }
	}
	if _, err := ParseSafeSearch("nsfw"); err == nil { t.Fatalf("expected error") }
}

type fakeAC struct {
	calls int
	out   []string
	err   error
}

func (f *fakeAC) Suggest(context.Context, string, string) ([]string, error) {
	f.calls++
	return f.out, f.err
}

func TestCachedAutocompleter_MemoizesByQuery(t *testing.T) {
	next := &fakeAC{out: []string{"a", "b"}}
	c := NewCachedAutocompleter(next, NewLocalLRU(8), time.Minute, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := c.Suggest(ctx, "water", "wt-wt")
		if err != nil || len(got) != 2 { t.Fatalf("got %v %v", got, err) }
	}
	if next.calls != 1 { t.Fatalf("provider called %d times", next.calls) }
	_, _ = c.Suggest(ctx, "water ", "wt-wt")
	if next.calls != 2 { t.Fatalf("distinct query should miss, calls=%d", next.calls) }
}

func TestCachedAutocompleter_DoesNotCacheErrors(t *testing.T) {
	next := &fakeAC{err: errors.New("boom")}
	c := NewCachedAutocompleter(next, NewLocalLRU(8), time.Minute, nil)
	_, _ = c.Suggest(context.Background(), "q", "")
	next.err, next.out = nil, []string{"ok"}
	got, err := c.Suggest(context.Background(), "q", "")
	if err != nil || len(got) != 1 || next.calls != 2 { t.Fatalf("got %v %v calls=%d", got, err, next.calls) }
}

func TestLocalLRU_ExpiryAndEviction(t *testing.T) {
	l := NewLocalLRU(2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	l.Set(ctx, "a", []string{"1"}, time.Second)
	l.Set(ctx, "b", []string{"2"}, time.Minute)
	if _, ok := l.Get(ctx, "a"); !ok { t.Fatalf("a should be cached") }
	l.Set(ctx, "c", []string{"3"}, time.Minute)
	if _, ok := l.Get(ctx, "b"); ok { t.Fatalf("b should have been evicted") }
	now = now.Add(2 * time.Second)
	if _, ok := l.Get(ctx, "a"); ok { t.Fatalf("a should have expired") }
	if l.Len() != 1 { t.Fatalf("len = %d", l.Len()) }
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "")
	ctx := context.Background()
	if _, ok := c.Get(ctx, "q"); ok { t.Fatalf("unexpected hit") }
	c.Set(ctx, "q", []string{"x", "y"}, time.Minute)
	got, ok := c.Get(ctx, "q")
	if !ok || len(got) != 2 || got[1] != "y" { t.Fatalf("got %v %v", got, ok) }
	if !mr.Exists("libreplexity:ac:q") { t.Fatalf("key not prefixed") }
	mr.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "q"); ok { t.Fatalf("entry should have expired") }
}
