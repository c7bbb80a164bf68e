package testsupport

import (
	"path/filepath"
	"testing"

	"reelqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.TMDB.RequestsPerSecond = 1000
	cfgVal.Embedding.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pipeline.ItemTimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDB points the test config at a fake TMDB server.
func WithTMDB(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
	}
}

// WithEmbedding points the test config at a fake embedding endpoint.
func WithEmbedding(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Embedding.BaseURL = baseURL
	}
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxRetries = n
	}
}

// WithBatch sets batch size and parallelism for every stage.
func WithBatch(size, parallelism int) ConfigOption {
	return func(b *configBuilder) {
		for _, sched := range []*config.StageSchedule{&b.cfg.Pipeline.Refresh, &b.cfg.Pipeline.Preprocess, &b.cfg.Pipeline.Embedding} {
			sched.BatchSize = size
			sched.Parallelism = parallelism
		}
	}
}

// WithoutDiscovery disables the discovery job.
func WithoutDiscovery() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discovery.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
