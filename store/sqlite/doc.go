// Package sqlite provides embedded SQLite backends for the memory store and
// the conversation log, for single-node deployments without PostgreSQL.
//
// The driver is the pure Go modernc.org/sqlite, so no cgo toolchain is
// needed. Timestamps are stored as Unix nanoseconds.
package sqlite
