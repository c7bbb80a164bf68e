package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ClaimBatch leases up to limit items in status, oldest update first. Items
// whose id is in exclude are never returned, so a caller draining several
// batches can keep an item it already attempted out of later claims.
//
// The select and the lease stamp run as one UPDATE statement, so SQLite's
// write lock makes the claim atomic across goroutines and processes: an item
// with a live lease is never returned to a second caller. Leasing does not
// touch updated_at.
func (s *Store) ClaimBatch(ctx context.Context, status Status, limit int, exclude ...int64) ([]*Item, error) {
	if _, ok := statusSet[status]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status.IsTerminal() {
		return nil, fmt.Errorf("claim %s: %w", status, ErrInvalidTransition)
	}
	if limit <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	excluded := idList(exclude)

	var items []*Item
	err := retryOnBusy(ctx, func() error {
		now := s.now()
		token := uuid.NewString()
		rows, err := s.db.QueryContext(ctx,
			`UPDATE queue_items
             SET claim_token = ?, claimed_until = ?
             WHERE id IN (
                 SELECT id FROM queue_items
                 WHERE status = ? AND (claim_token IS NULL OR claimed_until IS NULL OR claimed_until < ?)
                   AND id NOT IN (SELECT value FROM json_each(?))
                 ORDER BY updated_at, id
                 LIMIT ?
             )
             RETURNING `+itemColumns,
			token,
			formatTime(now.Add(s.lease)),
			status,
			formatTime(now),
			excluded,
			limit,
		)
		if err != nil {
			return err
		}
		items, err = scanItems(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s batch: %w", status, err)
	}
	// RETURNING order is unspecified.
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// idList renders ids as a JSON array for json_each.
func idList(ids []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte(']')
	return b.String()
}

// Release clears the leases held by items without changing anything else.
// Items whose lease was taken over by another claim are left alone.
func (s *Store) Release(ctx context.Context, items ...*Item) error {
	if len(items) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			if item == nil || item.ClaimToken == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue_items SET claim_token = NULL, claimed_until = NULL WHERE id = ? AND claim_token = ?`,
				item.ID, item.ClaimToken,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("release claims: %w", err)
	}
	for _, item := range items {
		if item != nil {
			item.ClaimToken = ""
			item.ClaimedUntil = nil
		}
	}
	return nil
}
