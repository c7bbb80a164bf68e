package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func claimTokenArg(item *Item) any {
	return nullableString(item.ClaimToken)
}

// Transition moves a claimed item to the next status and persists the title
// and description produced by the stage. Retries, message, and the lease are
// cleared. The write only applies while the item is still in item.Status and
// held by item.ClaimToken; otherwise ErrClaimLost is returned.
func (s *Store) Transition(ctx context.Context, item *Item, to Status) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if !CanTransition(item.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to)
	}
	timestamp := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items
         SET status = ?, retries = 0, message = NULL,
             title = COALESCE(?, title), description = COALESCE(?, description),
             claim_token = NULL, claimed_until = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND claim_token IS ?`,
		to,
		nullableString(strings.TrimSpace(item.Title)),
		nullableString(item.Description),
		timestamp,
		item.ID,
		item.Status,
		claimTokenArg(item),
	)
	if err != nil {
		return fmt.Errorf("transition item %d: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardFailure(ctx, item)
	}
	item.Status = to
	item.Retries = 0
	item.Message = ""
	item.ClaimToken = ""
	item.ClaimedUntil = nil
	if updated, err := parseTimeString(timestamp); err == nil {
		item.UpdatedAt = updated
	}
	return nil
}

// RecordFailure spends one retry on a claimed item in a single statement.
// When the budget is exhausted the item moves to FAILED; otherwise it stays
// in its status with message set, eligible for the next claim. The returned
// item reflects the stored row.
func (s *Store) RecordFailure(ctx context.Context, item *Item, errText string) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if !CanTransition(item.Status, StatusFailed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, StatusFailed)
	}
	errText = strings.TrimSpace(errText)
	if errText == "" {
		errText = "unknown error"
	}
	ctx = ensureContext(ctx)

	var (
		found     bool
		statusStr string
		retries   int
		updated   string
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE queue_items
             SET retries = retries + 1,
                 message = ?,
                 status = CASE WHEN retries + 1 >= ? THEN ? ELSE status END,
                 claim_token = NULL, claimed_until = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND claim_token IS ?
             RETURNING status, retries, updated_at`,
			errText,
			s.maxRetries,
			StatusFailed,
			s.timestamp(),
			item.ID,
			item.Status,
			claimTokenArg(item),
		)
		scanErr := row.Scan(&statusStr, &retries, &updated)
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record failure for item %d: %w", item.ID, err)
	}
	if !found {
		return nil, s.guardFailure(ctx, item)
	}

	out := *item
	out.Status = Status(statusStr)
	out.Retries = retries
	out.Message = errText
	out.ClaimToken = ""
	out.ClaimedUntil = nil
	if ts, err := parseTimeString(updated); err == nil {
		out.UpdatedAt = ts
	}
	return &out, nil
}

func (s *Store) guardFailure(ctx context.Context, item *Item) error {
	current, err := s.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: item %d is %s (expected %s)", ErrClaimLost, item.ID, current.Status, item.Status)
}

// ForceStatus sets status on the given items, or on every item when ids is
// empty. Retries always reset to zero, message is replaced (cleared when
// empty), and any lease is dropped, which makes the items eligible for the
// stage consuming status on its next claim.
func (s *Store) ForceStatus(ctx context.Context, status Status, message string, ids ...int64) (int64, error) {
	if _, ok := statusSet[status]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	query := `UPDATE queue_items
        SET status = ?, retries = 0, message = ?, claim_token = NULL, claimed_until = NULL, updated_at = ?`
	args := []any{status, nullableString(strings.TrimSpace(message)), s.timestamp()}
	if len(ids) > 0 {
		query += ` WHERE id IN (` + makePlaceholders(len(ids)) + `)`
		args = append(args, int64Args(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("force status %s: %w", status, err)
	}
	return res.RowsAffected()
}

// RetryFailed moves FAILED items (all, or the given ids) back to REFRESH_DATA
// with a fresh retry budget.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE queue_items
        SET status = ?, retries = 0, message = NULL, claim_token = NULL, claimed_until = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusRefreshData, s.timestamp(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		args = append(args, int64Args(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}
