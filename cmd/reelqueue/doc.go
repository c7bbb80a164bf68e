// Command reelqueue administers the movie processing queue: it inspects and
// edits queue items, bulk-imports TMDB id exports, runs the pipeline in the
// foreground, and searches the embedding index.
package main
