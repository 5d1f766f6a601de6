package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const yamlCfg = `
addr: :9999
search:
  provider: brave
  brave_api_key: k
  safe_search: strict
scrape:
  timeout_ms: 1500
inference:
  base_url: http://gpu:8080/v1/
  default_model: big
  models:
    - id: tiny
      size: small
    - id: big
      size: large
prefs:
  backend: redis
redis:
  addr: 127.0.0.1:6379
`

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", yamlCfg)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":9999" || cfg.Search.Provider != "brave" || cfg.Scrape.TimeoutMS != 1500 || cfg.Inference.DefaultModel != "big" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Inference.Models) != 2 || cfg.Inference.Models[1].Size != "large" {
		t.Fatalf("unexpected models: %+v", cfg.Inference.Models)
	}
	if err := cfg.WithDefaults().Validate(); err != nil { t.Fatalf("validate: %v", err) }
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","scrape":{"max_pages":2},"relay":{"url":"https://relay.example/"},"inference":{"engine":"llama","models_dir":"/m"}}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":7070" || cfg.Scrape.MaxPages != 2 || cfg.Relay.URL != "https://relay.example/" || cfg.Inference.Engine != "llama" || cfg.Inference.ModelsDir != "/m" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\n[autocomplete]\ncache=\"none\"\nttl_seconds=9\n[[inference.models]]\nid=\"m3\"\nsize=\"small\"\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":8081" || cfg.Autocomplete.Cache != "none" || cfg.Autocomplete.TTLSeconds != 9 || len(cfg.Inference.Models) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil { t.Fatalf("expected unsupported extension error") }
}
