package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelqueue/internal/config"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TMDB_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, path, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, got %s", path)
	}
	if want := filepath.Join(home, ".local/share/reelqueue"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if cfg.Pipeline.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want 3", cfg.Pipeline.MaxRetries)
	}
	if cfg.Importer.CommitEvery != 50 || cfg.Importer.CommitIntervalSeconds != 10 {
		t.Fatalf("unexpected importer defaults %+v", cfg.Importer)
	}
	if cfg.RequireTMDB() == nil {
		t.Fatal("expected RequireTMDB to fail without key")
	}
}

func TestLoadFileAndEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TMDB_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[pipeline]
max_retries = 5

[pipeline.refresh]
interval_seconds = 30
batch_size = 10
parallelism = 0

[discovery]
allowed_languages = [" English ", "english", "Swedish"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env fallback", cfg.TMDB.APIKey)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("max retries = %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.Refresh.Parallelism != 1 {
		t.Fatalf("parallelism = %d, want normalized 1", cfg.Pipeline.Refresh.Parallelism)
	}
	if got := strings.Join(cfg.Discovery.AllowedLanguages, ","); got != "english,swedish" {
		t.Fatalf("allowed languages = %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.QueueDBPath() != filepath.Join(dir, "data", "queue.db") {
		t.Fatalf("queue db path = %q", cfg.QueueDBPath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"language":  func(c *config.Config) { c.TMDB.Language = "not a tag!" },
		"retries":   func(c *config.Config) { c.Pipeline.MaxRetries = 0 },
		"batch":     func(c *config.Config) { c.Pipeline.Embedding.BatchSize = 0 },
		"threshold": func(c *config.Config) { c.Importer.LatinThreshold = 1.5 },
		"format":    func(c *config.Config) { c.Logging.Format = "xml" },
		"bind":      func(c *config.Config) { c.Metrics.Bind = "nope" },
		"embedding": func(c *config.Config) { c.Embedding.BaseURL = "ftp://x" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Embedding.MaxDistance != 0.39 {
		t.Fatalf("max distance = %v", cfg.Embedding.MaxDistance)
	}
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.TMDB.APIKey = "secret"
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("encoded config leaked secret:\n%s", out)
	}
}
