// Package log builds the slog loggers used by imgrescue.
//
// Header files and per-host configuration carry bot-protection cookies
// (cf_clearance, __cf_bm) and occasionally bearer tokens. SecureHandler
// masks those wherever they show up in log attributes, and strips signing
// parameters from logged URLs, so verbose logs can be shared.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
// Content hashes are long hex strings and are deliberately left readable.
package log
