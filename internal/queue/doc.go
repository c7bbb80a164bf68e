// Package queue persists pipeline items, movie records, and import cursors in
// SQLite and exposes the operations that drive item lifecycle.
//
// The Store manages database connections, embedded migrations, stats queries,
// lease-based batch claims, and status transitions that follow the forward
// transition table in models.go. Every write retries on SQLITE_BUSY with a
// short bounded backoff so concurrent daemons, CLI commands, and the importer
// can share one database file.
//
// Treat this package as the single source of truth for queue semantics; add a
// new numbered file under migrations/ when the schema changes.
package queue
