// Package corpus assembles source files into the single text stream that is
// windowed and analyzed.
//
// Each file is written as a header line "=== FILE: <path> ===" followed by
// its content, so a window that starts in the middle of the stream still
// tells the model which file it is reading. The byte span of every file is
// recorded so report entries can be mapped back to paths.
//
// Files are gathered by an [FSReader], which walks a directory (or lists
// git-tracked files), filters by language extension and include/exclude
// globs, and skips binary and oversized files.
package corpus
