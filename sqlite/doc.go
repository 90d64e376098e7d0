// Package sqlite provides a SQLite-backed opqueue.Storage.
//
// Snapshots live in a single key/value table, the natural durable backend
// for a single-device client queue. Register the driver by importing
// github.com/mattn/go-sqlite3 in the composition root.
package sqlite
