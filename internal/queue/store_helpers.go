package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const itemColumns = "id, external_id, title, status, retries, message, description, claim_token, claimed_until, created_at, updated_at"

// timestampLayout is fixed width so lexicographic order in SQLite matches
// chronological order. RFC3339Nano trims trailing zeros and would not.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item         Item
		statusStr    string
		title        sql.NullString
		message      sql.NullString
		description  sql.NullString
		claimToken   sql.NullString
		claimedUntil sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.ExternalID,
		&title,
		&statusStr,
		&item.Retries,
		&message,
		&description,
		&claimToken,
		&claimedUntil,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(statusStr)
	item.Title = title.String
	item.Message = message.String
	item.Description = description.String
	item.ClaimToken = claimToken.String
	if claimedUntil.Valid {
		if ts, err := parseTimeString(claimedUntil.String); err == nil {
			item.ClaimedUntil = &ts
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func joinList(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return strings.Join(cleaned, ", ")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
