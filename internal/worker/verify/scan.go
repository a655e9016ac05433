// Package verify implements the Verification Worker (spec.md §4.4): a
// model-driven discover/generate/execute pipeline run against a cloned
// repository's already-deployed HTTP surface.
package verify

import (
	"os"
	"path/filepath"
	"strings"
)

// ignoredDirs mirrors the iacclassifier's ignore list (spec.md §4.4's
// "ignoring source-control and package-manager directories").
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// ScanSource lists every non-ignored file under root, capped at the first
// fileCap paths for prompt-length safety (SPEC_FULL.md §4.4,
// VERIFY_SCAN_FILE_CAP).
func ScanSource(root string, fileCap int) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk
		}
		if len(out) >= fileCap {
			return filepath.SkipAll
		}
		if entry.IsDir() {
			if ignoredDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		if len(out) >= fileCap {
			return filepath.SkipAll
		}
		return nil
	})
	return out
}

// Classify reports coarse signals about a scanned file list: presence of
// HTTP-framework entry files, Lambda-handler files, and OpenAPI documents,
// judged from file names only. Process does not call ClassifyFiles, so the
// discovery prompt receives the bare file list without these signals.
type Classify struct {
	HasLambdaHandler bool
	HasOpenAPI       bool
	HasHTTPFramework bool
}

func ClassifyFiles(paths []string) Classify {
	var c Classify
	for _, p := range paths {
		base := strings.ToLower(filepath.Base(p))
		switch {
		case base == "openapi.yaml" || base == "openapi.yml" || base == "openapi.json" || base == "swagger.json":
			c.HasOpenAPI = true
		case base == "handler.js" || base == "handler.ts" || base == "index.js" || base == "index.ts":
			c.HasLambdaHandler = true
		case base == "app.js" || base == "server.js" || base == "main.py" || base == "app.py":
			c.HasHTTPFramework = true
		}
	}
	return c
}
