// Package mapping turns fetch outcomes into the two run products: the
// rewrite table, which maps every observed URL variant to a stored asset,
// and the failure ledger, which lists every URL that produced nothing.
package mapping
