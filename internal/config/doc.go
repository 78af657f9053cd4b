// Package config holds the run configuration of imgrescue: input and output
// paths, fetch tuning, fallback switches, and per-host request headers
// loaded from a YAML file or a plain "Key: Value" headers file.
package config
