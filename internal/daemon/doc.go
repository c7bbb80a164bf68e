// Package daemon coordinates the long-running reelqueue process.
//
// It wires configuration, queue storage and the workflow manager into a
// single lifecycle with flock-based locking, so only one scheduler ever
// drives a given data directory. A second daemon fails fast with a clear
// error instead of competing for claims.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown and status.
package daemon
