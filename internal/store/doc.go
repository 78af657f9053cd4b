// Package store implements the content-addressed asset store.
//
// Every payload is written to "<sha1><ext>" inside the store directory,
// exactly once. A write goes through a temporary file in the same directory
// followed by a rename, so an interrupted run never leaves a hash-named file
// with content that does not match its name.
package store
