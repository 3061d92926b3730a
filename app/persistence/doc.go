// Package persistence provides the durable store for scheduler work items.
// It keeps work items with their status and the dependency edges between them
// in SQLite (WAL mode for concurrent readers), recovers interrupted claims on
// every open and exposes the compare-and-set access ports the scheduler uses.
// The same SQLiteStore type backs both the durable, file-based store and the
// ephemeral in-memory store used by isolated test runs.
package persistence
