package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr         string             `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel     string             `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes int64              `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// TrustProxy honours X-Forwarded-For/X-Real-IP for client addresses.
	TrustProxy   bool               `json:"trust_proxy" yaml:"trust_proxy" toml:"trust_proxy"`
	CORS         CORSConfig         `json:"cors" yaml:"cors" toml:"cors"`
	Relay        RelayConfig        `json:"relay" yaml:"relay" toml:"relay"`
	Search       SearchConfig       `json:"search" yaml:"search" toml:"search"`
	Autocomplete AutocompleteConfig `json:"autocomplete" yaml:"autocomplete" toml:"autocomplete"`
	Scrape       ScrapeConfig       `json:"scrape" yaml:"scrape" toml:"scrape"`
	Inference    InferenceConfig    `json:"inference" yaml:"inference" toml:"inference"`
	Prefs        PrefsConfig        `json:"prefs" yaml:"prefs" toml:"prefs"`
	Redis        RedisConfig        `json:"redis" yaml:"redis" toml:"redis"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// RelayConfig covers both the relay client (URL) and the relay server.
type RelayConfig struct {
	// URL of a remote relay. Empty means requests are made directly.
	URL string `json:"url" yaml:"url" toml:"url"`
	// Mount serves the relay under /relay on the API server.
	Mount      bool    `json:"mount" yaml:"mount" toml:"mount"`
	Listen     string  `json:"listen" yaml:"listen" toml:"listen"`
	RatePerSec float64 `json:"rate_per_sec" yaml:"rate_per_sec" toml:"rate_per_sec"`
	Burst      int     `json:"burst" yaml:"burst" toml:"burst"`
	TimeoutMS  int     `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
}

type SearchConfig struct {
	// Provider is "duckduckgo" or "brave".
	Provider    string `json:"provider" yaml:"provider" toml:"provider"`
	BraveAPIKey string `json:"brave_api_key" yaml:"brave_api_key" toml:"brave_api_key"`
	// SafeSearch is "strict", "moderate" or "off".
	SafeSearch string `json:"safe_search" yaml:"safe_search" toml:"safe_search"`
	Locale     string `json:"locale" yaml:"locale" toml:"locale"`
	Attempts   int    `json:"attempts" yaml:"attempts" toml:"attempts"`
	DelayMS    int    `json:"delay_ms" yaml:"delay_ms" toml:"delay_ms"`
	// Endpoint overrides the provider base URL.
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
}

type AutocompleteConfig struct {
	// Cache is "memory", "redis" or "none".
	Cache      string `json:"cache" yaml:"cache" toml:"cache"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds" toml:"ttl_seconds"`
	ThrottleMS int    `json:"throttle_ms" yaml:"throttle_ms" toml:"throttle_ms"`
	MaxResults int    `json:"max_results" yaml:"max_results" toml:"max_results"`
	Endpoint   string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
}

type ScrapeConfig struct {
	TimeoutMS     int `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" toml:"max_candidates"`
	MaxPages      int `json:"max_pages" yaml:"max_pages" toml:"max_pages"`
}

type ModelConfig struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Size string `json:"size" yaml:"size" toml:"size"`
	Name string `json:"name" yaml:"name" toml:"name"`
	Path string `json:"path" yaml:"path" toml:"path"`
}

type InferenceConfig struct {
	// Engine is "openai" (any OpenAI-compatible server) or "llama".
	Engine           string        `json:"engine" yaml:"engine" toml:"engine"`
	BaseURL          string        `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey           string        `json:"api_key" yaml:"api_key" toml:"api_key"`
	DefaultModel     string        `json:"default_model" yaml:"default_model" toml:"default_model"`
	Models           []ModelConfig `json:"models" yaml:"models" toml:"models"`
	ModelsDir        string        `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	MaxDocTokens     int           `json:"max_doc_tokens" yaml:"max_doc_tokens" toml:"max_doc_tokens"`
	MaxOutputTokens  int           `json:"max_output_tokens" yaml:"max_output_tokens" toml:"max_output_tokens"`
	Temperature      float32       `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP             float32       `json:"top_p" yaml:"top_p" toml:"top_p"`
	SwitchDebounceMS int           `json:"switch_debounce_ms" yaml:"switch_debounce_ms" toml:"switch_debounce_ms"`
	CtxSize          int           `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads          int           `json:"threads" yaml:"threads" toml:"threads"`
	Encoding         string        `json:"encoding" yaml:"encoding" toml:"encoding"`
}

type PrefsConfig struct {
	// Backend is "file", "redis" or "memory".
	Backend string `json:"backend" yaml:"backend" toml:"backend"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
