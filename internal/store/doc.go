// Package store persists immutable diagnostic runs and their metrics behind
// a narrow append-only interface. Two implementations are provided: an
// in-memory store for tests and database-less deployments, and a SQLite
// store built on gorm. Both commit a run and its rows atomically — readers
// never observe a partially written run.
package store
