// Package config loads and merges codescan configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (CODESCAN_PROVIDER, CODESCAN_WINDOW_MAX_SIZE, ...)
//  3. Config file (--config, ./codescan.yaml, or $XDG_CONFIG_HOME/codescan/codescan.yaml)
//  4. Built-in defaults
//
// Merging is done by a viper instance private to each Load call, so loading
// never touches process-wide state. Use [Load] to obtain a merged [Config],
// [Save] to write one, and [SetField] to update a single key in a config
// file.
package config
