package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// Stats counts items per status. Statuses with no items are absent.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health folds the per-status counts into pending, completed and failed
// buckets and adds the number of live claims and of items that have failed
// at least once without exhausting their retries.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var summary HealthSummary
	for status, count := range stats {
		summary.Total += count
		switch {
		case status == StatusCompleted:
			summary.Completed += count
		case status == StatusFailed:
			summary.Failed += count
		default:
			summary.Pending += count
		}
	}

	err = s.db.QueryRowContext(ctx, `
SELECT
    COUNT(CASE WHEN claim_token IS NOT NULL AND claimed_until >= ? THEN 1 END),
    COUNT(CASE WHEN status NOT IN (?, ?) AND retries > 0 THEN 1 END)
FROM queue_items`,
		s.timestamp(), StatusCompleted, StatusFailed,
	).Scan(&summary.Claimed, &summary.SoftFailed)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	return summary, nil
}

// CheckHealth inspects the database file and schema. A missing file is
// reported through DatabaseExists without an error; any probe that fails
// records its message in Error and returns it.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path, SchemaVersion: SchemaVersion()}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	fail := func(op string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.db.PingContext(probeCtx); err != nil {
		return fail("ping queue database", err)
	}
	health.DatabaseReadable = true

	columns, err := s.tableColumns(probeCtx, "queue_items")
	if err != nil {
		return fail("inspect queue_items", err)
	}
	if columns != nil {
		health.TableExists = true
		health.ColumnsPresent = columns
		health.MissingColumns = missingColumns(strings.Split(itemColumns, ", "), columns)
		if err := s.db.QueryRowContext(probeCtx, `SELECT COUNT(*) FROM queue_items`).Scan(&health.TotalItems); err != nil {
			return fail("count queue items", err)
		}
	}

	var verdict string
	if err := s.db.QueryRowContext(probeCtx, `PRAGMA integrity_check`).Scan(&verdict); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(verdict, "ok")
	return health, nil
}

// tableColumns returns the column names of table in declaration order, or
// nil when the table does not exist.
func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns := []string{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func missingColumns(expected, present []string) []string {
	var missing []string
	for _, col := range expected {
		if !slices.Contains(present, col) {
			missing = append(missing, col)
		}
	}
	slices.Sort(missing)
	return missing
}
