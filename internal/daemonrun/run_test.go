package daemonrun_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelqueue/internal/daemon"
	"reelqueue/internal/daemonrun"
	"reelqueue/internal/testsupport"
)

func TestRunServesMetricsAndCleansUp(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(upstream.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithTMDB(upstream.URL),
		testsupport.WithEmbedding(upstream.URL),
		testsupport.WithoutDiscovery(),
	)
	cfg.Metrics.Bind = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		body      string
		secondErr error
		pidSeen   bool
	)
	err := daemonrun.Run(ctx, cfg, daemonrun.Options{
		LogLevel: "debug",
		Ready: func(addr string) {
			defer cancel()
			if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "reelqueued.pid")); err == nil {
				pidSeen = true
			}
			resp, err := http.Get("http://" + addr + "/metrics")
			if err != nil {
				t.Errorf("scrape metrics: %v", err)
				return
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			body = string(raw)

			second := *cfg
			second.Metrics.Bind = ""
			secondErr = daemonrun.Run(context.Background(), &second, daemonrun.Options{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics body missing runtime collectors:\n%s", body)
	}
	if !errors.Is(secondErr, daemon.ErrAlreadyRunning) {
		t.Fatalf("second daemon error = %v, want ErrAlreadyRunning", secondErr)
	}
	if !pidSeen {
		t.Fatal("expected pid file while running")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "reelqueued.pid")); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed on exit, stat err = %v", err)
	}
	logs, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "reelqueued-*.log"))
	if err != nil || len(logs) == 0 {
		t.Fatalf("expected timestamped log files, got %v (err %v)", logs, err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "reelqueued.log")); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
