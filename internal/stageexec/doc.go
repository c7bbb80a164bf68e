// Package stageexec runs one pipeline stage over a claimed batch of queue
// items.
//
// A Runner claims up to BatchSize items in its input status, executes the
// stage handler for each with bounded parallelism and a per-item timeout,
// and then either advances the item or spends one of its retries. Item
// errors never escape the runner; only store failures abort a cycle.
package stageexec
