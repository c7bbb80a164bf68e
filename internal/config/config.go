package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Language            string  `toml:"language"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	DetailsCacheSeconds int     `toml:"details_cache_seconds"`
}

// Embedding contains configuration for the OpenAI-compatible embedding
// endpoint and the local vector index.
type Embedding struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	DocumentPrefix string  `toml:"document_prefix"`
	QueryPrefix    string  `toml:"query_prefix"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxDistance    float64 `toml:"max_distance"`
	TopK           int     `toml:"top_k"`
}

// StageSchedule controls how often a pipeline stage runs and how much work
// each run claims.
type StageSchedule struct {
	IntervalSeconds int `toml:"interval_seconds"`
	BatchSize       int `toml:"batch_size"`
	Parallelism     int `toml:"parallelism"`
}

// Interval returns the schedule interval as a duration.
func (s StageSchedule) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Pipeline contains queue retry accounting and per-stage schedules.
type Pipeline struct {
	MaxRetries         int           `toml:"max_retries"`
	ClaimLeaseSeconds  int           `toml:"claim_lease_seconds"`
	ItemTimeoutSeconds int           `toml:"item_timeout_seconds"`
	MaxBatchesPerRun   int           `toml:"max_batches_per_run"`
	Refresh            StageSchedule `toml:"refresh"`
	Preprocess         StageSchedule `toml:"preprocess"`
	Embedding          StageSchedule `toml:"embedding"`
}

// ClaimLease returns the lease applied to claimed queue items.
func (p Pipeline) ClaimLease() time.Duration {
	return time.Duration(p.ClaimLeaseSeconds) * time.Second
}

// ItemTimeout returns the per-item collaborator timeout.
func (p Pipeline) ItemTimeout() time.Duration {
	return time.Duration(p.ItemTimeoutSeconds) * time.Second
}

// Discovery contains configuration for the catalog discovery job.
type Discovery struct {
	Enabled          bool     `toml:"enabled"`
	IntervalSeconds  int      `toml:"interval_seconds"`
	Pages            int      `toml:"pages"`
	AllowedLanguages []string `toml:"allowed_languages"`
	RejectedTTLHours int      `toml:"rejected_ttl_hours"`
}

// Importer contains configuration for the bulk id importer.
type Importer struct {
	CommitEvery            int     `toml:"commit_every"`
	CommitIntervalSeconds  int     `toml:"commit_interval_seconds"`
	LatinThreshold         float64 `toml:"latin_threshold"`
	DownloadTimeoutSeconds int     `toml:"download_timeout_seconds"`
}

// Description contains configuration for description normalization.
type Description struct {
	MaxRunes int `toml:"max_runes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the Prometheus listener.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for reelqueue.
//
// Configuration sections by subsystem:
//   - Paths: data (queue.db, vectors.db, exports) and log directories
//   - TMDB: catalog fetcher credentials and rate limits
//   - Embedding: embedding endpoint and similarity search defaults
//   - Pipeline: retry budget, claim leases, per-stage cadence
//   - Discovery: listing pages and acceptability policy
//   - Importer: bulk export checkpointing and filtering
//   - Description: normalization limits
//   - Logging: log format and level
//   - Metrics: optional Prometheus listener
type Config struct {
	Paths       Paths       `toml:"paths"`
	TMDB        TMDB        `toml:"tmdb"`
	Embedding   Embedding   `toml:"embedding"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Discovery   Discovery   `toml:"discovery"`
	Importer    Importer    `toml:"importer"`
	Description Description `toml:"description"`
	Logging     Logging     `toml:"logging"`
	Metrics     Metrics     `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, export, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.ExportDir(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// VectorDBPath returns the location of the embedding index database.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.db")
}

// ExportDir returns the directory downloaded bulk exports are stored in.
func (c *Config) ExportDir() string {
	return filepath.Join(c.Paths.DataDir, "exports")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelqueued.lock")
}

// RequireTMDB reports a configuration error when no TMDB credential is set.
// Commands that never talk to the catalog (queue administration, import) skip it.
func (c *Config) RequireTMDB() error {
	if strings.TrimSpace(c.TMDB.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'reelqueue config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML. Secrets are masked.
func (c *Config) Encode() (string, error) {
	masked := *c
	masked.TMDB.APIKey = maskSecret(masked.TMDB.APIKey)
	masked.Embedding.APIKey = maskSecret(masked.Embedding.APIKey)
	data, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

func maskSecret(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "********"
}
