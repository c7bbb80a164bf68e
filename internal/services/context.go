package services

import "context"

type scopeKey struct{}

// Scope holds the identifiers a pipeline operation runs under. Zero fields
// are unset.
type Scope struct {
	Job        string
	Stage      string
	ItemID     int64
	ExternalID int64
	RequestID  string
}

// ScopeFrom returns the scope attached to ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	if s, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return s
	}
	return Scope{}
}

// Empty reports whether no identifier is set.
func (s Scope) Empty() bool {
	return s == Scope{}
}

func withScope(ctx context.Context, update func(*Scope)) context.Context {
	s := ScopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithItemID annotates context with the queue item identifier.
func WithItemID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.ItemID = id })
}

// WithExternalID annotates context with the TMDB id being processed.
func WithExternalID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.ExternalID = id })
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Stage = stage })
}

// WithJob annotates context with the scheduler job name.
func WithJob(ctx context.Context, job string) context.Context {
	if job == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Job = job })
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.RequestID = id })
}
