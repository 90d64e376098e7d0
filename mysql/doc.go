// Package mysql provides a MySQL-backed opqueue.Storage.
//
// Snapshots live in a single key/value table. A networked SQL server is an
// unusual home for an offline queue's snapshots, but it fits deployments
// where the "device" is a long-lived service with its own database. Register
// the driver by importing github.com/go-sql-driver/mysql in the composition
// root.
package mysql
