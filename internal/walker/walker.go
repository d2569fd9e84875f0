// Package walker discovers regular files under a root path. It applies
// exclude globs and size limits so the rest of the pipeline only ever
// sees indexable files.
package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Walker yields the regular files rooted at a path. A file root yields
// itself; a directory root is walked recursively.
type Walker struct {
	excludes    []string
	maxFileSize int64
}

// Options configures a Walker.
type Options struct {
	// ExcludePatterns are doublestar globs matched against the path
	// relative to the walk root (e.g. "**/node_modules/**", "*.log").
	ExcludePatterns []string

	// MaxFileSize skips files larger than this many bytes. 0 disables
	// the limit.
	MaxFileSize int64
}

// New creates a Walker.
func New(opts Options) *Walker {
	return &Walker{
		excludes:    opts.ExcludePatterns,
		maxFileSize: opts.MaxFileSize,
	}
}

// Files returns the absolute paths of all regular files under root.
// A non-existent root yields no files and no error; unreadable subtrees
// are skipped with a warning.
func (w *Walker) Files(root string) []string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		slog.Warn("cannot resolve walk root",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return nil
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		// Best-effort: missing roots are accepted silently.
		return nil
	}

	if info.Mode().IsRegular() {
		if w.tooLarge(info.Size()) {
			return nil
		}
		return []string{absRoot}
	}
	if !info.IsDir() {
		return nil
	}

	var files []string
	_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != absRoot && w.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if w.excluded(rel) {
			return nil
		}
		if w.maxFileSize > 0 {
			fi, infoErr := d.Info()
			if infoErr != nil || w.tooLarge(fi.Size()) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files
}

func (w *Walker) tooLarge(size int64) bool {
	return w.maxFileSize > 0 && size > w.maxFileSize
}

// excluded reports whether the root-relative path matches any exclude
// pattern. Directory paths are passed with a trailing slash so patterns
// like "vendor/" work.
func (w *Walker) excluded(rel string) bool {
	for _, pattern := range w.excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		// Also match against the bare name with the slash stripped, so
		// patterns without a trailing slash ("vendor") exclude the
		// directory itself.
		if len(rel) > 0 && rel[len(rel)-1] == '/' {
			if ok, err := doublestar.Match(pattern, rel[:len(rel)-1]); err == nil && ok {
				return true
			}
		}
	}
	return false
}
