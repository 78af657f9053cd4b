// Package main provides the entry point for the imgrescue CLI.
//
// imgrescue recovers the images referenced by a legacy content export.
// It resolves every image occurrence to one canonical URL, downloads each
// unique URL once with retries and fallbacks, stores the bytes under their
// sha1 and writes a table mapping every observed URL to the stored file.
//
// Usage:
//
//	imgrescue plan occurrences.csv
//	imgrescue fetch occurrences.csv --archive
//
// See --help for all available options.
package main

func main() {
	Execute()
}
