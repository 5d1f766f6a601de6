package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values.
const (
	DefaultAddr             = ":8080"
	DefaultMaxBodyBytes     = 1 << 20
	DefaultSearchProvider   = "duckduckgo"
	DefaultSafeSearch       = "moderate"
	DefaultLocale           = "wt-wt"
	DefaultSearchAttempts   = 3
	DefaultScrapeTimeoutMS  = 2500
	DefaultMaxCandidates    = 5
	DefaultMaxPages         = 3
	DefaultAutocompleteTTL  = 300
	DefaultThrottleMS       = 1000
	DefaultMaxSuggestions   = 5
	DefaultRelayListen      = ":8787"
	DefaultRelayRate        = 5
	DefaultRelayBurst       = 10
	DefaultRelayTimeoutMS   = 10000
	DefaultEngine           = "openai"
	DefaultEngineBaseURL    = "http://127.0.0.1:8081/v1/"
	DefaultMaxDocTokens     = 1024
	DefaultMaxOutputTokens  = 512
	DefaultSwitchDebounceMS = 100
	DefaultPrefsBackend     = "file"
)

// Default returns a Config with every field set to its default.
func Default() Config { return Config{}.WithDefaults() }

// WithDefaults returns a copy of c with unset fields defaulted.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Relay.Listen == "" {
		c.Relay.Listen = DefaultRelayListen
	}
	if c.Relay.RatePerSec <= 0 {
		c.Relay.RatePerSec = DefaultRelayRate
	}
	if c.Relay.Burst <= 0 {
		c.Relay.Burst = DefaultRelayBurst
	}
	if c.Relay.TimeoutMS <= 0 {
		c.Relay.TimeoutMS = DefaultRelayTimeoutMS
	}
	if c.Search.Provider == "" {
		c.Search.Provider = DefaultSearchProvider
	}
	if c.Search.SafeSearch == "" {
		c.Search.SafeSearch = DefaultSafeSearch
	}
	if c.Search.Locale == "" {
		c.Search.Locale = DefaultLocale
	}
	if c.Search.Attempts <= 0 {
		c.Search.Attempts = DefaultSearchAttempts
	}
	if c.Autocomplete.Cache == "" {
		c.Autocomplete.Cache = "memory"
	}
	if c.Autocomplete.TTLSeconds <= 0 {
		c.Autocomplete.TTLSeconds = DefaultAutocompleteTTL
	}
	if c.Autocomplete.ThrottleMS <= 0 {
		c.Autocomplete.ThrottleMS = DefaultThrottleMS
	}
	if c.Autocomplete.MaxResults <= 0 {
		c.Autocomplete.MaxResults = DefaultMaxSuggestions
	}
	if c.Scrape.TimeoutMS <= 0 {
		c.Scrape.TimeoutMS = DefaultScrapeTimeoutMS
	}
	if c.Scrape.MaxCandidates <= 0 {
		c.Scrape.MaxCandidates = DefaultMaxCandidates
	}
	if c.Scrape.MaxPages <= 0 {
		c.Scrape.MaxPages = DefaultMaxPages
	}
	if c.Inference.Engine == "" {
		c.Inference.Engine = DefaultEngine
	}
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = DefaultEngineBaseURL
	}
	if c.Inference.MaxDocTokens <= 0 {
		c.Inference.MaxDocTokens = DefaultMaxDocTokens
	}
	if c.Inference.MaxOutputTokens <= 0 {
		c.Inference.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Inference.Temperature <= 0 {
		c.Inference.Temperature = 0.2
	}
	if c.Inference.TopP <= 0 {
		c.Inference.TopP = 0.9
	}
	if c.Inference.SwitchDebounceMS <= 0 {
		c.Inference.SwitchDebounceMS = DefaultSwitchDebounceMS
	}
	if c.Prefs.Backend == "" {
		c.Prefs.Backend = DefaultPrefsBackend
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = defaultPrefsPath()
	}
	return c
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	var problems []string
	switch c.Search.Provider {
	case "duckduckgo":
	case "brave":
		if c.Search.BraveAPIKey == "" {
			problems = append(problems, "search.brave_api_key is required for the brave provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown search.provider %q", c.Search.Provider))
	}
	switch c.Search.SafeSearch {
	case "strict", "moderate", "off":
	default:
		problems = append(problems, fmt.Sprintf("unknown search.safe_search %q", c.Search.SafeSearch))
	}
	switch c.Autocomplete.Cache {
	case "memory", "none":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis autocomplete cache")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown autocomplete.cache %q", c.Autocomplete.Cache))
	}
	switch c.Prefs.Backend {
	case "file", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis prefs backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown prefs.backend %q", c.Prefs.Backend))
	}
	for _, m := range c.Inference.Models {
		if m.ID == "" {
			problems = append(problems, "inference.models entries need an id")
		}
		if m.Size != "" && m.Size != "small" && m.Size != "large" {
			problems = append(problems, fmt.Sprintf("inference model %q: size must be small or large", m.ID))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Timeout is the per-URL scrape timeout.
func (s ScrapeConfig) Timeout() time.Duration { return time.Duration(s.TimeoutMS) * time.Millisecond }

// Delay is the pause before each search.
func (s SearchConfig) Delay() time.Duration { return time.Duration(s.DelayMS) * time.Millisecond }

func (r RelayConfig) Timeout() time.Duration { return time.Duration(r.TimeoutMS) * time.Millisecond }

func (a AutocompleteConfig) TTL() time.Duration { return time.Duration(a.TTLSeconds) * time.Second }

func (a AutocompleteConfig) Throttle() time.Duration {
	return time.Duration(a.ThrottleMS) * time.Millisecond
}

func (i InferenceConfig) SwitchDebounce() time.Duration {
	return time.Duration(i.SwitchDebounceMS) * time.Millisecond
}

func defaultPrefsPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "libreplexity", "prefs.json")
	}
	return "libreplexity-prefs.json"
}
