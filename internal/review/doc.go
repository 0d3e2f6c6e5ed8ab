// Package review runs a source corpus through a completion provider and
// assembles the answers into one report.
//
// The Analyzer splits the corpus into overlapping windows, hands each window
// to an executor.Executor with bounded parallelism, and collects exactly one
// result per window. A cancelled run still returns a report: windows that
// finished keep their analysis, the rest are marked cancelled.
//
// Merge (merge.go) orders the results and removes text that two adjacent
// analyses both contain because their windows overlapped. The repeated text
// is found with a KMP prefix function and kept in the later segment. A
// failed window is replaced by a placeholder marker so the gap is visible.
//
// Prompts (prompt.go) follow a fixed security-review template. Rules packs
// (rules.go) add focus areas, ignored issue types and required checks.
package review
