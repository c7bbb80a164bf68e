package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelqueue/internal/config"
	"reelqueue/internal/logging"
	"reelqueue/internal/metrics"
	"reelqueue/internal/queue"
)

// ErrNothingToResume is returned by Resume when every recorded import has
// completed.
var ErrNothingToResume = errors.New("no incomplete import to resume")

// Store is the queue surface the importer needs.
type Store interface {
	ResetCursor(ctx context.Context, sourceURL, localPath string) (*queue.ImportCursor, error)
	LoadCursor(ctx context.Context, sourceURL string) (*queue.ImportCursor, error)
	LatestCursor(ctx context.Context) (*queue.ImportCursor, error)
	CommitImportBatch(ctx context.Context, entries []queue.ImportEntry, c *queue.ImportCursor) (int, error)
}

// Options configures an Importer.
type Options struct {
	ExportDir       string
	CommitEvery     int
	CommitInterval  time.Duration
	LatinThreshold  float64
	DownloadTimeout time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Result summarizes one import run.
type Result struct {
	SourceURL string
	LocalPath string
	Resumed   bool
	// Lines counts lines read during this run.
	Lines    int64
	Imported int64
	Existing int64
	Skipped  int64
	Commits  int
	Cursor   *queue.ImportCursor
}

// Importer loads exports into the queue.
type Importer struct {
	store          Store
	exportDir      string
	commitEvery    int
	commitInterval time.Duration
	latinThreshold float64
	httpClient     *http.Client
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// New builds an Importer.
func New(store Store, opts Options) (*Importer, error) {
	if store == nil {
		return nil, errors.New("importer requires a store")
	}
	if strings.TrimSpace(opts.ExportDir) == "" {
		return nil, errors.New("importer requires an export directory")
	}
	im := &Importer{
		store:          store,
		exportDir:      opts.ExportDir,
		commitEvery:    opts.CommitEvery,
		commitInterval: opts.CommitInterval,
		latinThreshold: opts.LatinThreshold,
		httpClient:     opts.HTTPClient,
		logger:         logging.NewComponentLogger(opts.Logger, "importer"),
		metrics:        opts.Metrics,
		now:            opts.Now,
	}
	if im.commitEvery <= 0 {
		im.commitEvery = 50
	}
	if im.commitInterval <= 0 {
		im.commitInterval = 10 * time.Second
	}
	if im.httpClient == nil {
		im.httpClient = &http.Client{Timeout: opts.DownloadTimeout}
	}
	if im.now == nil {
		im.now = time.Now
	}
	return im, nil
}

// NewFromConfig builds an Importer from the importer section of cfg.
func NewFromConfig(cfg *config.Config, store Store, logger *slog.Logger, m *metrics.Metrics) (*Importer, error) {
	if cfg == nil {
		return nil, errors.New("importer requires a config")
	}
	return New(store, Options{
		ExportDir:       cfg.ExportDir(),
		CommitEvery:     cfg.Importer.CommitEvery,
		CommitInterval:  time.Duration(cfg.Importer.CommitIntervalSeconds) * time.Second,
		LatinThreshold:  cfg.Importer.LatinThreshold,
		DownloadTimeout: time.Duration(cfg.Importer.DownloadTimeoutSeconds) * time.Second,
		Logger:          logger,
		Metrics:         m,
	})
}

// Import fetches source, resets its cursor and imports it from the start.
func (im *Importer) Import(ctx context.Context, source string) (Result, error) {
	local, err := im.Fetch(ctx, source)
	if err != nil {
		return Result{SourceURL: source}, err
	}
	cursor, err := im.store.ResetCursor(context.WithoutCancel(ctx), source, local)
	if err != nil {
		return Result{SourceURL: source, LocalPath: local}, err
	}
	return im.run(ctx, cursor, false)
}

// Resume continues the incomplete import of source, or the most recently
// updated incomplete import when source is blank. ErrNothingToResume means
// there is no such cursor or it has already completed.
func (im *Importer) Resume(ctx context.Context, source string) (Result, error) {
	var (
		cursor *queue.ImportCursor
		err    error
	)
	if source = strings.TrimSpace(source); source != "" {
		cursor, err = im.store.LoadCursor(ctx, source)
	} else {
		cursor, err = im.store.LatestCursor(ctx)
	}
	if errors.Is(err, queue.ErrNotFound) {
		return Result{SourceURL: source}, ErrNothingToResume
	}
	if err != nil {
		return Result{SourceURL: source}, err
	}
	if cursor.Complete() {
		return Result{SourceURL: source, Cursor: cursor}, ErrNothingToResume
	}
	return im.run(ctx, cursor, true)
}

type batch struct {
	im         *Importer
	cursor     *queue.ImportCursor
	reader     *Reader
	entries    []queue.ImportEntry
	skipped    int64
	lastCommit time.Time
	result     *Result
}

// commit writes pending entries and the reader position in one transaction.
// The cursor's skipped counter is advanced only once the commit lands.
func (b *batch) commit(ctx context.Context) error {
	pending := *b.cursor
	pending.LineNumber, pending.ByteOffset = b.reader.Position()
	pending.Skipped += b.skipped
	created, err := b.im.store.CommitImportBatch(ctx, b.entries, &pending)
	if err != nil {
		return err
	}
	*b.cursor = pending
	existing := len(b.entries) - created
	b.result.Imported += int64(created)
	b.result.Existing += int64(existing)
	b.result.Skipped += b.skipped
	b.result.Commits++
	b.im.metrics.AddImportRecords("imported", created)
	b.im.metrics.AddImportRecords("existing", existing)
	b.im.metrics.AddImportRecords("skipped", int(b.skipped))
	b.entries = b.entries[:0]
	b.skipped = 0
	b.lastCommit = b.im.now()
	return nil
}

func (im *Importer) run(ctx context.Context, cursor *queue.ImportCursor, resumed bool) (Result, error) {
	result := Result{SourceURL: cursor.SourceURL, LocalPath: cursor.LocalPath, Resumed: resumed, Cursor: cursor}
	logger := im.logger.With(logging.String("source", cursor.SourceURL))
	reader, closer, err := OpenFile(cursor.LocalPath, cursor.LineNumber, cursor.ByteOffset)
	if err != nil {
		return result, err
	}
	defer closer.Close()

	logger.Info("import started",
		logging.String(logging.FieldEventType, "import_started"),
		logging.String("path", cursor.LocalPath),
		logging.Int64("line", cursor.LineNumber),
		logging.Bool("resumed", resumed),
	)

	b := &batch{
		im:         im,
		cursor:     cursor,
		reader:     reader,
		entries:    make([]queue.ImportEntry, 0, im.commitEvery),
		lastCommit: im.now(),
		result:     &result,
	}
	// Commits never inherit cancellation so the batch in hand always lands.
	storeCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			if commitErr := b.commit(storeCtx); commitErr != nil {
				return result, fmt.Errorf("commit on interrupt: %w", commitErr)
			}
			logger.Info("import interrupted",
				logging.String(logging.FieldEventType, "import_interrupted"),
				logging.Int64("line", cursor.LineNumber),
				logging.Int64("imported", result.Imported),
			)
			return result, err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if commitErr := b.commit(storeCtx); commitErr != nil {
				return result, errors.Join(err, commitErr)
			}
			return result, err
		}
		result.Lines++
		switch {
		case rec.Skipped:
			b.skipped++
		case rec.OriginalTitle != "" && !MostlyLatin(rec.OriginalTitle, im.latinThreshold):
			b.skipped++
		default:
			b.entries = append(b.entries, queue.ImportEntry{ExternalID: rec.ExternalID, Title: rec.OriginalTitle})
			b.cursor.LastExternalID = rec.ExternalID
		}
		if len(b.entries) >= im.commitEvery || im.now().Sub(b.lastCommit) >= im.commitInterval {
			if err := b.commit(storeCtx); err != nil {
				return result, err
			}
		}
	}

	completed := im.now().UTC()
	b.cursor.CompletedAt = &completed
	if err := b.commit(storeCtx); err != nil {
		b.cursor.CompletedAt = nil
		return result, err
	}
	logger.Info("import finished",
		logging.String(logging.FieldEventType, "import_complete"),
		logging.Int64("lines", result.Lines),
		logging.Int64("imported", result.Imported),
		logging.Int64("existing", result.Existing),
		logging.Int64("skipped", result.Skipped),
	)
	return result, nil
}
