package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeEmbedding()
	c.normalizePipeline()
	c.normalizeDiscovery()
	c.normalizeImporter()
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeoutSeconds
	}
}

func (c *Config) normalizeEmbedding() {
	if c.Embedding.APIKey == "" {
		if value, ok := os.LookupEnv("EMBEDDING_API_KEY"); ok {
			c.Embedding.APIKey = value
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Embedding.APIKey = value
		}
	}
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = defaultEmbeddingBaseURL
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeout
	}
	if c.Embedding.TopK <= 0 {
		c.Embedding.TopK = defaultTopK
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ClaimLeaseSeconds <= 0 {
		c.Pipeline.ClaimLeaseSeconds = defaultClaimLeaseSeconds
	}
	if c.Pipeline.ItemTimeoutSeconds <= 0 {
		c.Pipeline.ItemTimeoutSeconds = defaultItemTimeoutSeconds
	}
	if c.Pipeline.MaxBatchesPerRun <= 0 {
		c.Pipeline.MaxBatchesPerRun = defaultMaxBatchesPerRun
	}
	for _, sched := range []*StageSchedule{&c.Pipeline.Refresh, &c.Pipeline.Preprocess, &c.Pipeline.Embedding} {
		if sched.Parallelism <= 0 {
			sched.Parallelism = 1
		}
	}
}

func (c *Config) normalizeDiscovery() {
	langs := make([]string, 0, len(c.Discovery.AllowedLanguages))
	seen := make(map[string]struct{}, len(c.Discovery.AllowedLanguages))
	for _, lang := range c.Discovery.AllowedLanguages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = append(langs, defaultAllowedLanguages...)
	}
	c.Discovery.AllowedLanguages = langs
	if c.Discovery.RejectedTTLHours <= 0 {
		c.Discovery.RejectedTTLHours = defaultRejectedTTLHours
	}
}

func (c *Config) normalizeImporter() {
	if c.Importer.DownloadTimeoutSeconds <= 0 {
		c.Importer.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
