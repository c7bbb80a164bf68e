package stageexec

import "sync"

// Report counts what happened to the items of one or more batches.
type Report struct {
	Batches      int
	Claimed      int
	Advanced     int
	SoftFailures int
	Exhausted    int
	Released     int
	Lost         int
}

// Add accumulates other into r.
func (r *Report) Add(other Report) {
	r.Batches += other.Batches
	r.Claimed += other.Claimed
	r.Advanced += other.Advanced
	r.SoftFailures += other.SoftFailures
	r.Exhausted += other.Exhausted
	r.Released += other.Released
	r.Lost += other.Lost
}

type tally struct {
	mu     sync.Mutex
	report Report
}

func (t *tally) add(fn func(*Report)) {
	t.mu.Lock()
	fn(&t.report)
	t.mu.Unlock()
}

func (t *tally) snapshot() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report
}
