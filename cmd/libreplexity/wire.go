package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"libreplexity/internal/config"
	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/internal/prefs"
	"libreplexity/internal/registry"
	"libreplexity/internal/relay"
	"libreplexity/internal/scrape"
	"libreplexity/internal/search"
	"libreplexity/pkg/types"
)

const (
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	localCacheSize = 512
	defaultMaxHits = 10
	pingTimeout    = 2 * time.Second
)

// app is the assembled object graph for one process.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	redis    redis.UniversalClient
	doer     relay.Doer
	registry *registry.Registry
	session  *inference.Session
	pipeline *pipeline.Pipeline
}

// newApp wires every component from cfg. The session is created but not
// started.
func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := a.redis.Ping(pctx).Err()
		cancel()
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}
	a.doer = newDoer(cfg.Relay)

	reg, err := newRegistry(cfg.Inference)
	if err != nil {
		a.close()
		return nil, err
	}
	a.registry = reg

	store, err := newPrefsStore(cfg.Prefs, a.redis)
	if err != nil {
		a.close()
		return nil, err
	}
	engine, err := inference.NewEngine(inference.EngineOptions{
		Kind: inference.EngineKind(cfg.Inference.Engine),
		OpenAI: inference.OpenAIConfig{
			BaseURL:   cfg.Inference.BaseURL,
			APIKey:    cfg.Inference.APIKey,
			Tokenizer: inference.NewTiktokenTokenizer(cfg.Inference.Encoding).WithLogger(log),
		},
		CtxSize: cfg.Inference.CtxSize,
		Threads: cfg.Inference.Threads,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	params := inference.DefaultLoadParams
	params.Temperature = cfg.Inference.Temperature
	params.TopP = cfg.Inference.TopP
	params.Threads = cfg.Inference.Threads
	a.session, err = inference.New(ctx, inference.Config{
		Engine:          engine,
		Registry:        reg,
		Prefs:           store,
		Publisher:       logPublisher{log: log},
		Logger:          &log,
		SwitchDebounce:  cfg.Inference.SwitchDebounce(),
		MaxDocTokens:    cfg.Inference.MaxDocTokens,
		MaxOutputTokens: cfg.Inference.MaxOutputTokens,
		LoadParams:      params,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	searcher, ac, err := newSearch(cfg, a.doer, a.redis, log)
	if err != nil {
		a.close()
		return nil, err
	}
	safe, err := search.ParseSafeSearch(cfg.Search.SafeSearch)
	if err != nil {
		a.close()
		return nil, err
	}
	a.pipeline, err = pipeline.New(pipeline.Config{
		Searcher:       searcher,
		Autocompleter:  ac,
		Scraper:        scrape.NewScraper(a.doer, userAgent),
		Distiller:      scrape.Readability{},
		Summarizer:     a.session,
		SafeSearch:     safe,
		Locale:         cfg.Search.Locale,
		SearchAttempts: cfg.Search.Attempts,
		SearchDelay:    cfg.Search.Delay(),
		ScrapeTimeout:  cfg.Scrape.Timeout(),
		MaxCandidates:  cfg.Scrape.MaxCandidates,
		MaxPages:       cfg.Scrape.MaxPages,
		Throttle:       cfg.Autocomplete.Throttle(),
		MaxSuggestions: cfg.Autocomplete.MaxResults,
		Logger:         &log,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// newDoer sends outbound requests through the configured relay, or
// directly when none is set.
func newDoer(c config.RelayConfig) relay.Doer {
	hc := &http.Client{Timeout: c.Timeout()}
	if c.URL != "" {
		return relay.NewClient(c.URL, hc)
	}
	return relay.Direct{HTTP: hc}
}

// newRegistry prefers configured models, then a scanned models dir, then
// the built-in list.
func newRegistry(c config.InferenceConfig) (*registry.Registry, error) {
	var models []types.ModelSpec
	for _, m := range c.Models {
		models = append(models, types.ModelSpec{ID: m.ID, SizeClass: types.SizeClass(m.Size), Name: m.Name, Path: m.Path})
	}
	if len(models) == 0 && c.ModelsDir != "" {
		scanned, err := registry.LoadDir(c.ModelsDir, 0)
		if err != nil {
			return nil, fmt.Errorf("scan models dir: %w", err)
		}
		models = scanned
	}
	if len(models) == 0 {
		models = registry.Builtin
	}
	return registry.New(models, c.DefaultModel)
}

func newPrefsStore(c config.PrefsConfig, rdb redis.UniversalClient) (prefs.Store, error) {
	switch c.Backend {
	case "file":
		return prefs.NewFileStore(c.Path), nil
	case "memory":
		return prefs.NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("prefs: redis backend needs redis.addr")
		}
		return prefs.NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q", c.Backend)
	}
}

// newSearch builds the searcher and the, possibly cached, autocompleter.
func newSearch(cfg config.Config, doer relay.Doer, rdb redis.UniversalClient, log zerolog.Logger) (search.Searcher, search.Autocompleter, error) {
	ddg := search.NewDuckDuckGo(doer, search.DuckDuckGoOptions{
		HTMLEndpoint: cfg.Search.Endpoint,
		ACEndpoint:   cfg.Autocomplete.Endpoint,
		Locale:       cfg.Search.Locale,
		MaxResults:   defaultMaxHits,
	})
	var searcher search.Searcher = ddg
	if cfg.Search.Provider == "brave" {
		searcher = search.NewBrave(doer, cfg.Search.BraveAPIKey, cfg.Search.Endpoint, defaultMaxHits)
	}

	var ac search.Autocompleter = ddg
	switch cfg.Autocomplete.Cache {
	case "none":
	case "memory":
		ac = search.NewCachedAutocompleter(ddg, search.NewLocalLRU(localCacheSize), cfg.Autocomplete.TTL(), &log)
	case "redis":
		if rdb == nil {
			return nil, nil, errors.New("autocomplete: redis cache needs redis.addr")
		}
		ac = search.NewCachedAutocompleter(ddg, search.NewRedisCache(rdb, ""), cfg.Autocomplete.TTL(), &log)
	default:
		return nil, nil, fmt.Errorf("autocomplete: unknown cache %q", cfg.Autocomplete.Cache)
	}
	return searcher, ac, nil
}

// logPublisher forwards session events to the process logger.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e inference.Event) {
	ev := p.log.Debug().Str("event", e.Name).Str("model", e.ModelID)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("inference event")
}
