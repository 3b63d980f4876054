package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/byte4ever/workbench_sync/repo"
)

// DefaultIgnore lists directory and file names skipped
// by Collect unless Options.Ignore replaces them.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".next",
	"dist",
	StateFile,
}

// Options tunes Collect.
type Options struct {
	// Ignore holds glob patterns matched against base
	// names and slash paths. Nil means DefaultIgnore.
	Ignore []string
	// MaxFileSize skips larger files. Zero means 1 MiB.
	MaxFileSize int64
}

const defaultMaxFileSize = 1 << 20

// Collect reads every text file under root and returns
// them sorted by path. Paths are slash separated and
// relative to root.
func Collect(root string, opts Options) ([]repo.FileChange, error) {
	const errCtx = "collecting workspace"

	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	var out []repo.FileChange

	err := filepath.WalkDir(
		root,
		func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}

			if rel == "." {
				return nil
			}

			rel = filepath.ToSlash(rel)

			if ignored(ignore, rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			if info.Size() > maxSize {
				slog.Warn(
					"skipping large file",
					"path", rel,
					"size", info.Size(),
				)

				return nil
			}

			data, err := os.ReadFile(p) //nolint:gosec // walking caller-provided root
			if err != nil {
				return err
			}

			if !utf8.Valid(data) {
				slog.Warn("skipping binary file", "path", rel)

				return nil
			}

			out = append(out, repo.FileChange{
				Path:    rel,
				Content: string(data),
			})

			return nil
		},
	)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(
			"%s: %s does not exist: %w", errCtx, root, err,
		)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})

	return out, nil
}

func ignored(patterns []string, rel string) bool {
	base := path.Base(rel)

	for _, pat := range patterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}

		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
	}

	return false
}
