package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const cursorColumns = "source_url, local_path, line_number, byte_offset, last_external_id, imported, skipped, completed_at, created_at, updated_at"

func scanCursor(row interface{ Scan(dest ...any) error }) (*ImportCursor, error) {
	var (
		c                      ImportCursor
		completed              sql.NullString
		createdRaw, updatedRaw string
	)
	if err := row.Scan(&c.SourceURL, &c.LocalPath, &c.LineNumber, &c.ByteOffset, &c.LastExternalID,
		&c.Imported, &c.Skipped, &completed, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	c.CompletedAt = parseNullableTime(completed)
	if ts, err := parseTimeString(createdRaw); err == nil {
		c.CreatedAt = ts
	}
	if ts, err := parseTimeString(updatedRaw); err == nil {
		c.UpdatedAt = ts
	}
	return &c, nil
}

// LoadCursor returns the cursor for sourceURL.
func (s *Store) LoadCursor(ctx context.Context, sourceURL string) (*ImportCursor, error) {
	row := ensureContextRow(ctx, s.db, `SELECT `+cursorColumns+` FROM import_cursors WHERE source_url = ?`, sourceURL)
	cursor, err := scanCursor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import cursor %q: %w", sourceURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load import cursor: %w", err)
	}
	return cursor, nil
}

// LatestCursor returns the most recently updated incomplete cursor.
func (s *Store) LatestCursor(ctx context.Context) (*ImportCursor, error) {
	row := ensureContextRow(ctx, s.db,
		`SELECT `+cursorColumns+` FROM import_cursors WHERE completed_at IS NULL ORDER BY updated_at DESC LIMIT 1`)
	cursor, err := scanCursor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no incomplete import: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest import cursor: %w", err)
	}
	return cursor, nil
}

func ensureContextRow(ctx context.Context, q rowQuerier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ensureContext(ctx), query, args...)
}

// ResetCursor replaces the cursor for sourceURL with a fresh one pointing at
// localPath. Cursors for other sources are untouched.
func (s *Store) ResetCursor(ctx context.Context, sourceURL, localPath string) (*ImportCursor, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, errors.New("import source url is required")
	}
	timestamp := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM import_cursors WHERE source_url = ?`, sourceURL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO import_cursors (source_url, local_path, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sourceURL, localPath, timestamp, timestamp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reset import cursor: %w", err)
	}
	return s.LoadCursor(ctx, sourceURL)
}

func (s *Store) saveCursorTx(ctx context.Context, tx *sql.Tx, c *ImportCursor, timestamp string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE import_cursors
         SET local_path = ?, line_number = ?, byte_offset = ?, last_external_id = ?,
             imported = ?, skipped = ?, completed_at = ?, updated_at = ?
         WHERE source_url = ?`,
		c.LocalPath, c.LineNumber, c.ByteOffset, c.LastExternalID,
		c.Imported, c.Skipped, nullableTime(c.CompletedAt), timestamp,
		c.SourceURL,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("import cursor %q: %w", c.SourceURL, ErrNotFound)
	}
	return nil
}

// CommitImportBatch upserts entries and saves the cursor in one transaction,
// so the committed position never runs ahead of the committed ids. The
// cursor's Imported counter is advanced by the number of rows created, which
// is also returned.
func (s *Store) CommitImportBatch(ctx context.Context, entries []ImportEntry, c *ImportCursor) (int, error) {
	if c == nil {
		return 0, errors.New("cursor is nil")
	}
	timestamp := s.timestamp()
	var created int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := upsertEntries(ctx, tx, entries, timestamp)
		if err != nil {
			return err
		}
		pending := *c
		pending.Imported += int64(n)
		if err := s.saveCursorTx(ctx, tx, &pending, timestamp); err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit import batch: %w", err)
	}
	c.Imported += int64(created)
	if ts, err := parseTimeString(timestamp); err == nil {
		c.UpdatedAt = ts
	}
	return created, nil
}
