// Codescan is a CLI for analyzing whole source trees with LLM providers.
//
// It concatenates the source files below a directory, splits the result into
// overlapping windows, analyzes each window with bounded parallelism and
// per-window retries, and merges the answers into one report with
// deterministic exit codes suitable for CI gating.
//
// Usage:
//
//	codescan analyze ./src                      # analyze every source file
//	codescan analyze --language go --git .      # only git-tracked Go files
//	codescan analyze --format json --out r.json # write a JSON report
//	codescan config init                        # write a default config file
//	codescan models doctor                      # check provider credentials
package main
