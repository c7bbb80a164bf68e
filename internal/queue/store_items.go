package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const upsertItemSQL = `INSERT INTO queue_items (external_id, title, status, retries, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?)
ON CONFLICT(external_id) DO NOTHING`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertItem(ctx context.Context, db execer, externalID int64, title, timestamp string) (bool, error) {
	if externalID <= 0 {
		return false, fmt.Errorf("external id %d must be positive", externalID)
	}
	res, err := db.ExecContext(ctx, upsertItemSQL, externalID, nullableString(strings.TrimSpace(title)), StatusRefreshData, timestamp, timestamp)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Upsert creates the item at REFRESH_DATA when externalID is not queued yet.
// An existing row is returned untouched. The bool reports whether a row was created.
func (s *Store) Upsert(ctx context.Context, externalID int64, title string) (*Item, bool, error) {
	ctx = ensureContext(ctx)
	var created bool
	err := retryOnBusy(ctx, func() error {
		var err error
		created, err = upsertItem(ctx, s.db, externalID, title, s.timestamp())
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert item %d: %w", externalID, err)
	}
	item, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

func upsertEntries(ctx context.Context, tx *sql.Tx, entries []ImportEntry, timestamp string) (int, error) {
	stmt, err := tx.PrepareContext(ctx, upsertItemSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	created := 0
	for _, entry := range entries {
		if entry.ExternalID <= 0 {
			continue
		}
		res, err := stmt.ExecContext(ctx, entry.ExternalID, nullableString(strings.TrimSpace(entry.Title)), StatusRefreshData, timestamp, timestamp)
		if err != nil {
			return 0, fmt.Errorf("upsert %d: %w", entry.ExternalID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	return created, nil
}

// GetByID fetches a queue item by internal identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByExternalID fetches a queue item by TMDB id.
func (s *Store) GetByExternalID(ctx context.Context, externalID int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE external_id = ?`, externalID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("external id %d: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item by external id: %w", err)
	}
	return item, nil
}

// ResolveExternalIDs maps external ids to internal ids. Unknown external ids
// are returned separately.
func (s *Store) ResolveExternalIDs(ctx context.Context, externalIDs []int64) ([]int64, []int64, error) {
	found, err := s.lookupExternal(ctx, externalIDs)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, len(externalIDs))
	var missing []int64
	for _, ext := range externalIDs {
		if id, ok := found[ext]; ok {
			ids = append(ids, id)
		} else {
			missing = append(missing, ext)
		}
	}
	return ids, missing, nil
}

// ExistingExternalIDs returns the subset of externalIDs that already have an item.
func (s *Store) ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]struct{}, error) {
	found, err := s.lookupExternal(ctx, externalIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(found))
	for ext := range found {
		out[ext] = struct{}{}
	}
	return out, nil
}

const lookupChunk = 500

func (s *Store) lookupExternal(ctx context.Context, externalIDs []int64) (map[int64]int64, error) {
	found := make(map[int64]int64, len(externalIDs))
	for start := 0; start < len(externalIDs); start += lookupChunk {
		end := min(start+lookupChunk, len(externalIDs))
		chunk := externalIDs[start:end]
		rows, err := s.db.QueryContext(ctx,
			`SELECT external_id, id FROM queue_items WHERE external_id IN (`+makePlaceholders(len(chunk))+`)`,
			int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("lookup external ids: %w", err)
		}
		for rows.Next() {
			var ext, id int64
			if err := rows.Scan(&ext, &id); err != nil {
				rows.Close()
				return nil, err
			}
			found[ext] = id
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return found, nil
}

// List returns one page of items, newest update first, optionally filtered by status.
func (s *Store) List(ctx context.Context, opts ListOptions) (Page, error) {
	opts = opts.normalized()
	var (
		where string
		args  []any
	)
	if len(opts.Statuses) > 0 {
		for _, status := range opts.Statuses {
			if _, ok := statusSet[status]; !ok {
				return Page{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
			}
			args = append(args, status)
		}
		where = ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items`+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count items: %w", err)
	}

	pageArgs := append(append([]any(nil), args...), opts.PerPage, (opts.Page-1)*opts.PerPage)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM queue_items`+where+` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return Page{}, fmt.Errorf("list items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return Page{}, fmt.Errorf("scan items: %w", err)
	}
	return Page{Items: items, Total: total, Page: opts.Page, PerPage: opts.PerPage}, nil
}
