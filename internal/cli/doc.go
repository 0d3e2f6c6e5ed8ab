// Package cli wires together the Cobra command tree for the codescan binary.
//
// It defines the root command and all subcommands (analyze, config, models,
// cache, languages, version), binds flags, reads configuration, invokes the
// analyzer, and returns deterministic exit codes for CI gating.
package cli
