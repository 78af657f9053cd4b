// Package resolve picks the canonical download URL of each image occurrence
// and folds the selections into a deduplicated fetch worklist.
//
// Precedence is fixed: an explicit full-size URL wins over an inferred
// full-size URL, which wins over the thumbnail. The inferred URL is
// synthesized from a thumbnail carrying a size suffix such as "-320wi" by
// replacing the suffix with "-popup".
package resolve
