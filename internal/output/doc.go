// Package output formats analysis reports for display or machine consumption.
//
// Four formats are supported:
//   - text: the merged analysis followed by a run summary (default)
//   - markdown: the same content with a summary table and collapsible
//     failure and warning sections
//   - json: the full structured report
//   - yaml: the full structured report as YAML
//
// Use [GetWriter] to obtain a [Writer] for a format string, then call
// [Writer.Write] with an [io.Writer] and a [*review.Report]. [WriteReport]
// handles destination selection; an existing output file is replaced.
package output
