// Package window splits a corpus into overlapping, bounded-size windows.
//
// Windows are half-open byte ranges [Start, End) over the corpus text. Each
// window after the first begins overlapSize bytes before the previous one
// ended, so content near a boundary is seen by two windows. The final window
// always ends at the corpus end and every byte is covered by at least one
// window.
//
// Window boundaries are moved back to a UTF-8 rune start whenever that keeps
// the ordering and coverage guarantees; otherwise the raw byte offset is used.
//
// Use [Split] for a materialized slice or [All] for a lazy iterator.
package window
