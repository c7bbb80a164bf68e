package config

const (
	defaultConfigPath              = "~/.config/reelqueue/config.toml"
	defaultDataDir                 = "~/.local/share/reelqueue"
	defaultLogDir                  = "~/.local/share/reelqueue/logs"
	defaultTMDBLanguage            = "en-US"
	defaultTMDBBaseURL             = "https://api.themoviedb.org/3"
	defaultTMDBRequestsPerSecond   = 20
	defaultTMDBTimeoutSeconds      = 10
	defaultTMDBDetailsCacheSeconds = 3600
	defaultEmbeddingBaseURL        = "http://127.0.0.1:11434/v1"
	defaultEmbeddingModel          = "nomic-embed-text"
	defaultDocumentPrefix          = "search_document: "
	defaultQueryPrefix             = "search_query: "
	defaultEmbeddingTimeout        = 60
	defaultMaxDistance             = 0.39
	defaultTopK                    = 50
	defaultMaxRetries              = 3
	defaultClaimLeaseSeconds       = 900
	defaultItemTimeoutSeconds      = 60
	defaultMaxBatchesPerRun        = 20
	defaultDiscoveryInterval       = 4 * 60 * 60
	defaultDiscoveryPages          = 6
	defaultRejectedTTLHours        = 24
	defaultCommitEvery             = 50
	defaultCommitIntervalSeconds   = 10
	defaultLatinThreshold          = 0.9
	defaultDownloadTimeoutSeconds  = 600
	defaultDescriptionMaxRunes     = 4000
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 14
)

var defaultAllowedLanguages = []string{"english", "turkish", "swedish"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:             defaultTMDBBaseURL,
			Language:            defaultTMDBLanguage,
			RequestsPerSecond:   defaultTMDBRequestsPerSecond,
			TimeoutSeconds:      defaultTMDBTimeoutSeconds,
			DetailsCacheSeconds: defaultTMDBDetailsCacheSeconds,
		},
		Embedding: Embedding{
			BaseURL:        defaultEmbeddingBaseURL,
			Model:          defaultEmbeddingModel,
			DocumentPrefix: defaultDocumentPrefix,
			QueryPrefix:    defaultQueryPrefix,
			TimeoutSeconds: defaultEmbeddingTimeout,
			MaxDistance:    defaultMaxDistance,
			TopK:           defaultTopK,
		},
		Pipeline: Pipeline{
			MaxRetries:         defaultMaxRetries,
			ClaimLeaseSeconds:  defaultClaimLeaseSeconds,
			ItemTimeoutSeconds: defaultItemTimeoutSeconds,
			MaxBatchesPerRun:   defaultMaxBatchesPerRun,
			Refresh:            StageSchedule{IntervalSeconds: 10 * 60, BatchSize: 50, Parallelism: 4},
			Preprocess:         StageSchedule{IntervalSeconds: 30 * 60, BatchSize: 50, Parallelism: 4},
			Embedding:          StageSchedule{IntervalSeconds: 30 * 60, BatchSize: 50, Parallelism: 2},
		},
		Discovery: Discovery{
			Enabled:          true,
			IntervalSeconds:  defaultDiscoveryInterval,
			Pages:            defaultDiscoveryPages,
			AllowedLanguages: append([]string(nil), defaultAllowedLanguages...),
			RejectedTTLHours: defaultRejectedTTLHours,
		},
		Importer: Importer{
			CommitEvery:            defaultCommitEvery,
			CommitIntervalSeconds:  defaultCommitIntervalSeconds,
			LatinThreshold:         defaultLatinThreshold,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Description: Description{
			MaxRunes: defaultDescriptionMaxRunes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
