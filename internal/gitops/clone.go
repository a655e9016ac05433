// Package gitops wraps go-git for the clone/branch/commit/push operations
// shared by the Deployment, Verification, and Repair workers.
package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

// Clone is a private, shallow, single-branch working copy that exists only
// within one worker invocation. Root is Dir adjusted by any caller-supplied
// sub-path.
type Clone struct {
	Dir  string
	Root string
	repo *git.Repository
}

// CloneShallow clones repoURL at branch (depth 1, single-branch) into a
// fresh temp directory and resolves subPath, if given, against it. A
// sub-path that does not resolve to a directory is a
// sdlcerr.KindPackageIntegrity error, per spec.md §4.2's "hard error at
// clone time" edge case.
func CloneShallow(ctx context.Context, repoURL, branch, subPath string) (*Clone, error) {
	dir, err := os.MkdirTemp("", "sdlc-clone-*")
	if err != nil {
		return nil, sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to create clone directory")
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, sdlcerr.Wrap(sdlcerr.KindTransient, err, "clone failed")
	}

	root := dir
	if subPath != "" {
		root = filepath.Join(dir, subPath)
		info, statErr := os.Stat(root)
		if statErr != nil || !info.IsDir() {
			_ = os.RemoveAll(dir)
			return nil, sdlcerr.New(sdlcerr.KindPackageIntegrity, fmt.Sprintf("sub-path %q does not resolve to a directory", subPath))
		}
	}

	return &Clone{Dir: dir, Root: root, repo: repo}, nil
}

// Cleanup deletes the clone directory. Called on every worker exit path,
// including from a defer recover(), per spec.md §4.3's cleanup rule.
func (c *Clone) Cleanup() {
	if c == nil || c.Dir == "" {
		return
	}
	_ = os.RemoveAll(c.Dir)
}
