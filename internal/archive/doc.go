// Package archive finds historical captures of URLs that can no longer be
// fetched from their origin.
//
// The Wayback resolver queries the CDX index for captures recorded with
// status 200, picks the newest one, and builds an "id_" retrieval URL that
// returns the original payload without the archive's HTML wrapper.
package archive
