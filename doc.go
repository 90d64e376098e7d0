// Package opqueue provides a durable offline operation queue with pluggable
// storage backends.
//
// Typical flow:
//  1. Construct a Queue with the Executors that perform deferred work and a
//     Storage backend for crash-safe snapshots.
//  2. Enqueue operations while the client is offline; entries are admitted
//     into a bounded, priority-ordered store and persisted.
//  3. Run the queue so the network monitor can trigger batch processing once
//     connectivity returns. Failed entries are retried after a fixed delay
//     and, once the retry budget is exhausted, moved to a bounded
//     failed-item store for inspection and manual retry.
//
// For the SQLite and MySQL snapshot backends, see the sqlite and mysql
// packages. For broadcasting queue events to websocket clients, see wsevents.
package opqueue
