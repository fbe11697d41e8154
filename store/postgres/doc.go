// Package postgres provides PostgreSQL backends for the memory store, the
// conversation log, the knowledge base and the user directory.
//
// All stores share one pgx connection pool. Migrate applies the embedded
// goose migrations; the knowledge migration requires the pgvector extension.
package postgres
