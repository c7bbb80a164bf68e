// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, stage and job names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every collaborator
//     failure carries a classification (validation, not found, timeout, ...).
package services
