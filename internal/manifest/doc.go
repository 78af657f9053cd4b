// Package manifest reads and writes the CSV files exchanged with the
// extraction and rewrite steps: occurrences, the unique worklist, the
// rewrite table and the failure ledger.
//
// Readers locate columns by header name, so extra or reordered columns are
// accepted. Writers always emit the same column order.
package manifest
