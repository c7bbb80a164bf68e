// Package scheduler runs named jobs on independent intervals.
//
// Each job gets its own ticker loop. A tick that arrives while the previous
// run of the same job is still executing is skipped and counted rather
// than queued, so a slow job never piles up work behind itself. Stop
// cancels the loops and waits for in-flight runs to return.
package scheduler
