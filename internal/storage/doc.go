// Package storage provides the BBolt-backed note database for notelock.
//
// Database structure uses three buckets:
//   - config: schema version, created and modified timestamps
//   - Note: notes keyed by UUID, JSON encoded
//   - Tag: tags keyed by UUID, JSON encoded
//
// Besides CRUD, the Store streams every committed change to handlers
// registered with StreamItems, tagged with the PayloadSource that caused it.
// Streams are how editors and lists stay in sync with the database without
// polling.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
