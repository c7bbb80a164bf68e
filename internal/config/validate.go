package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateImporter(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateMetrics()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.Language == "" {
		return errors.New("tmdb.language must be set")
	}
	if _, err := language.Parse(c.TMDB.Language); err != nil {
		return fmt.Errorf("tmdb.language %q is not a valid BCP 47 tag: %w", c.TMDB.Language, err)
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		return errors.New("tmdb.requests_per_second must be positive")
	}
	if c.TMDB.DetailsCacheSeconds < 0 {
		return errors.New("tmdb.details_cache_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if !strings.HasPrefix(c.Embedding.BaseURL, "http://") && !strings.HasPrefix(c.Embedding.BaseURL, "https://") {
		return fmt.Errorf("embedding.base_url %q must be an http(s) URL", c.Embedding.BaseURL)
	}
	if c.Embedding.MaxDistance <= 0 || c.Embedding.MaxDistance > 2 {
		return errors.New("embedding.max_distance must be in (0, 2]")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxRetries < 1 {
		return errors.New("pipeline.max_retries must be at least 1")
	}
	for name, sched := range map[string]StageSchedule{
		"refresh":    c.Pipeline.Refresh,
		"preprocess": c.Pipeline.Preprocess,
		"embedding":  c.Pipeline.Embedding,
	} {
		if sched.IntervalSeconds <= 0 {
			return fmt.Errorf("pipeline.%s.interval_seconds must be positive", name)
		}
		if sched.BatchSize <= 0 {
			return fmt.Errorf("pipeline.%s.batch_size must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if !c.Discovery.Enabled {
		return nil
	}
	if c.Discovery.IntervalSeconds <= 0 {
		return errors.New("discovery.interval_seconds must be positive")
	}
	if c.Discovery.Pages <= 0 {
		return errors.New("discovery.pages must be positive")
	}
	return nil
}

func (c *Config) validateImporter() error {
	if c.Importer.CommitEvery <= 0 {
		return errors.New("importer.commit_every must be positive")
	}
	if c.Importer.CommitIntervalSeconds <= 0 {
		return errors.New("importer.commit_interval_seconds must be positive")
	}
	if c.Importer.LatinThreshold < 0 || c.Importer.LatinThreshold > 1 {
		return errors.New("importer.latin_threshold must be between 0 and 1")
	}
	if c.Description.MaxRunes < 0 {
		return errors.New("description.max_runes must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind %q: %w", c.Metrics.Bind, err)
	}
	return nil
}
