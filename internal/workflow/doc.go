// Package workflow advances queue items through the processing stages.
//
// The Manager builds one stage runner per pipeline step (refresh,
// preprocess, embedding) plus the optional discovery pass, and registers
// each as a scheduler job with its own interval. A stage job drains its
// input status in batches until a claim comes back short. RunOnce executes
// every job a single time in pipeline order, which is what the CLI uses
// for one-shot processing. Status aggregates job history, stage health and
// queue counts.
//
// Add a new stage by extending the queue status table, implementing a
// stage.Handler, and appending it to the runner list in NewManager.
package workflow
