package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxFileBytes is the per-file size limit.
const DefaultMaxFileBytes = 1 << 20 // 1MB

// binarySniffBytes is how much of a file is checked for NUL bytes.
const binarySniffBytes = 8000

// Reader produces the ordered sources that make up a corpus.
type Reader interface {
	Read(ctx context.Context) ([]Source, error)
}

// FSReader reads source files below Root.
type FSReader struct {
	Root string
	// Language restricts files to that language's extensions. Empty means
	// every known source extension.
	Language string
	Include  []string
	Exclude  []string
	// MaxFileBytes skips larger files. Zero means DefaultMaxFileBytes.
	MaxFileBytes int
	// GitTracked lists files with `git ls-files` instead of walking the tree.
	GitTracked bool
	Logger     *zap.Logger
}

// Skipped describes a file left out of the corpus.
type Skipped struct {
	Path   string
	Reason string
}

// Read returns matching files sorted by path. Paths are relative to Root
// and use forward slashes.
func (r *FSReader) Read(ctx context.Context) ([]Source, error) {
	sources, _, err := r.ReadWithSkipped(ctx)
	return sources, err
}

// ReadWithSkipped is Read but also reports which candidate files were
// dropped and why.
func (r *FSReader) ReadWithSkipped(ctx context.Context) ([]Source, []Skipped, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var exts []string
	if r.Language != "" {
		exts = Extensions(r.Language)
		if exts == nil {
			return nil, nil, fmt.Errorf("unsupported language %q (supported: %s)", r.Language, strings.Join(Languages(), ", "))
		}
	}

	paths, err := r.listFiles(ctx)
	if err != nil {
		return nil, nil, err
	}

	limit := r.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}

	var sources []Source
	var skipped []Skipped
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if exts != nil && !hasExtension(path, exts) {
			continue
		}
		if exts == nil && DetectLanguage(path) == "" {
			continue
		}
		if len(r.Include) > 0 && !MatchesAny(path, r.Include) {
			continue
		}
		if len(r.Exclude) > 0 && MatchesAny(path, r.Exclude) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(path)))
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: "unreadable"})
			log.Debug("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(data) > limit {
			skipped = append(skipped, Skipped{Path: path, Reason: "too large"})
			log.Debug("skipping oversized file", zap.String("path", path), zap.Int("bytes", len(data)))
			continue
		}
		if isBinary(data) {
			skipped = append(skipped, Skipped{Path: path, Reason: "binary"})
			continue
		}
		sources = append(sources, Source{Path: path, Text: string(data)})
	}

	log.Debug("collected sources", zap.Int("files", len(sources)), zap.Int("skipped", len(skipped)))
	return sources, skipped, nil
}

func (r *FSReader) listFiles(ctx context.Context) ([]string, error) {
	root := r.Root
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	if r.GitTracked {
		out, err := gitOutput(ctx, root, "ls-files")
		if err != nil {
			return nil, fmt.Errorf("git ls-files: %w", err)
		}
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				files = append(files, line)
			}
		}
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffBytes {
		data = data[:binarySniffBytes]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
