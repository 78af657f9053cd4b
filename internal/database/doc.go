// Package database keeps the fetch history of imgrescue in SQLite.
//
// The history records the latest outcome of every URL ever fetched and one
// row per pipeline run. It lets a later run skip URLs whose assets are
// already in the store and lets the history command list past runs.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, so the
// database is a single file next to the user's other data.
package database
