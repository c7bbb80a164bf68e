package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusRefreshData           Status = "refresh_data"
	StatusPreprocessDescription Status = "preprocess_description"
	StatusCreateEmbedding       Status = "create_embedding"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
)

var allStatuses = []Status{
	StatusRefreshData,
	StatusPreprocessDescription,
	StatusCreateEmbedding,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// forward lists the single successor of every non-terminal status. FAILED is
// reachable from each of them and is handled separately.
var forward = map[Status]Status{
	StatusRefreshData:           StatusPreprocessDescription,
	StatusPreprocessDescription: StatusCreateEmbedding,
	StatusCreateEmbedding:       StatusCompleted,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. Upper-case names such as
// REFRESH_DATA are accepted.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// NextStatus returns the status a successful stage moves an item to.
func NextStatus(from Status) (Status, bool) {
	next, ok := forward[from]
	return next, ok
}

// CanTransition reports whether from -> to is an edge of the transition table.
func CanTransition(from, to Status) bool {
	if _, ok := forward[from]; !ok {
		return false
	}
	if to == StatusFailed {
		return true
	}
	next := forward[from]
	return next == to
}

// IsTerminal reports whether no stage consumes the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label renders the status the way operators refer to it (REFRESH_DATA).
func (s Status) Label() string {
	return strings.ToUpper(string(s))
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID          int64
	ExternalID  int64
	Title       string
	Status      Status
	Retries     int
	Message     string
	Description string
	// ClaimToken identifies the batch claim currently holding the item. It is
	// empty when the item is not claimed.
	ClaimToken   string
	ClaimedUntil *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claimed reports whether the item holds a live lease at now.
func (i Item) Claimed(now time.Time) bool {
	return i.ClaimToken != "" && i.ClaimedUntil != nil && i.ClaimedUntil.After(now)
}

// Movie is the catalog record fetched from TMDB and stored alongside the queue.
type Movie struct {
	TMDBID              int64
	Title               string
	Status              string
	ReleaseDate         string
	PosterPath          string
	Runtime             int
	VoteAverage         float64
	VoteCount           int
	Popularity          float64
	Overview            string
	Tagline             string
	Genres              []string
	SpokenLanguages     []string
	ProductionCompanies []string
	ProductionCountries []string
	Keywords            []string
	Cast                []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ImportEntry is one id read from a bulk export.
type ImportEntry struct {
	ExternalID int64
	Title      string
}

// ImportCursor records how far a bulk import got through its source.
type ImportCursor struct {
	SourceURL      string
	LocalPath      string
	LineNumber     int64
	ByteOffset     int64
	LastExternalID int64
	Imported       int64
	Skipped        int64
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Complete reports whether the import reached the end of its source.
func (c ImportCursor) Complete() bool {
	return c.CompletedAt != nil
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Statuses []Status
	Page     int
	PerPage  int
}

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = defaultPerPage
	}
	if o.PerPage > maxPerPage {
		o.PerPage = maxPerPage
	}
	return o
}

// Page is one page of list results.
type Page struct {
	Items   []*Item
	Total   int
	Page    int
	PerPage int
}

// Pages returns the number of pages for the total.
func (p Page) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Completed  int
	Failed     int
	Claimed    int
	SoftFailed int
}
