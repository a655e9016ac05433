package artifact

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
)

// excludedDirs lists the VCS metadata and installed package-manager trees
// that do not belong in a deployment artifact. Unlike the iacclassifier's
// ignore list, it does not exclude vendor.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// ZipDir packages every file under root (relative to root) into a zip
// archive, skipping excludedDirs. Used by the Deployment Worker to build
// simple-lambda and per-function SAM archives before upload.
func ZipDir(root string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if excludedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fw, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = fw.Write(content)
		return err
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
