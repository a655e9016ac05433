package iacclassifier

import (
	"os"
	"path/filepath"
)

// ignoredDirs mirrors spec.md §4.3's "excluding the source-control directory
// and the language package-manager directory" rule, reused here for
// classification and in the Verification Worker's source scan.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// DirSnapshot implements Snapshot over a real directory on disk - the
// classifier's normal input, the root of a cloned repo (possibly adjusted by
// the caller's sub-path).
type DirSnapshot struct {
	Root string
}

// Paths walks Root and returns every file path relative to it, skipping
// ignored directories.
func (d DirSnapshot) Paths() []string {
	var out []string
	_ = filepath.WalkDir(d.Root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk, unreadable entries are skipped
		}
		if entry.IsDir() {
			if ignoredDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(d.Root, path)
		if relErr != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out
}

// ReadFile reads path (relative to Root).
func (d DirSnapshot) ReadFile(path string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(path)))
	if err != nil {
		return "", false
	}
	return string(content), true
}
