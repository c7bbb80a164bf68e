package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"reelqueue/internal/config"
	"reelqueue/internal/daemon"
	"reelqueue/internal/logging"
	"reelqueue/internal/metrics"
	"reelqueue/internal/queue"
	"reelqueue/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the metrics listener address ("" when the
	// listener is disabled) once the daemon is running.
	Ready func(metricsAddr string)
}

// Run starts the reelqueue daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (runErr error) {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelqueued-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelqueued.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reelqueued-*.log", Exclude: []string{logPath}},
	)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	m := metrics.New()
	manager, services, err := workflow.NewManagerFromConfig(cfg, store, logger,
		workflow.WithMetrics(m), workflow.WithRunOnStart(true))
	if err != nil {
		store.Close()
		return fmt.Errorf("build workflow: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		services.Close()
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}

	server, listener, err := startMetricsServer(cfg.Metrics.Bind, m, logger)
	if err != nil {
		d.Close()
		services.Close()
		return err
	}

	defer func() {
		var result *multierror.Error
		if server != nil {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := server.Shutdown(shutdownCtx); err != nil {
				result = multierror.Append(result, fmt.Errorf("metrics server: %w", err))
			}
			cancelShutdown()
		}
		if err := d.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("queue store: %w", err))
		}
		if err := services.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("vector index: %w", err))
		}
		if err := result.ErrorOrNil(); err != nil {
			logging.ErrorWithContext(logger, "daemon shutdown incomplete", "daemon_shutdown_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some resources may not have been released cleanly"),
			)
			if runErr == nil {
				runErr = err
			}
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon will not process queue items"),
		)
		return err
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelqueued.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if opts.Ready != nil {
		addr := ""
		if listener != nil {
			addr = listener.Addr().String()
		}
		opts.Ready(addr)
	}

	<-signalCtx.Done()
	logger.Info("reelqueue daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func startMetricsServer(bind string, m *metrics.Metrics, logger *slog.Logger) (*http.Server, net.Listener, error) {
	if strings.TrimSpace(bind) == "" {
		return nil, nil, nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on metrics bind %s: %w", bind, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics listener stopped", "metrics_listener_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "prometheus scrapes will fail until restart"),
			)
		}
	}()
	logger.Info("metrics listener started",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "metrics_listener_started"),
	)
	return server, listener, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "reelqueued.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("tmdb_key_present", strings.TrimSpace(cfg.TMDB.APIKey) != ""),
		logging.String("embedding_base_url", cfg.Embedding.BaseURL),
		logging.String("embedding_model", cfg.Embedding.Model),
		logging.Bool("discovery_enabled", cfg.Discovery.Enabled),
		logging.Int("max_retries", cfg.Pipeline.MaxRetries),
		logging.String("queue_db", cfg.QueueDBPath()),
		logging.String("vector_db", cfg.VectorDBPath()),
		logging.String("metrics_bind", cfg.Metrics.Bind),
	)
}
