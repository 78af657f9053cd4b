// Package pipeline chains the recovery components into one run.
//
// A run reads image occurrences, resolves each to a canonical URL, fetches
// the unique URLs, stores their bytes by content hash and finally writes
// the rewrite table and the failure ledger. Every stage is a Step that
// reads and extends a shared State.
//
// Steps added with AddFinalStep run even when the run was canceled, so a
// stopped run still leaves its partial outputs on disk.
package pipeline
