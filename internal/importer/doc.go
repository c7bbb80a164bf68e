// Package importer loads TMDB daily id exports into the queue.
//
// An import streams the export line by line and commits ids in batches
// together with a cursor recording the last committed line and byte offset.
// An interrupted import resumes from that cursor, and because queue upserts
// are idempotent, re-reading at most one uncommitted batch is harmless.
package importer
