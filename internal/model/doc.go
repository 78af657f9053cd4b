// Package model defines the data types that flow through the image recovery
// pipeline: occurrences read from the export, canonical selections, fetch
// targets, terminal fetch outcomes, stored assets, and the rows of the
// rewrite table and failure ledger.
//
// Values in this package are created once and never mutated after they are
// handed to the next stage.
package model
