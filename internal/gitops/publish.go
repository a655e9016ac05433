package gitops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

const (
	committerName  = "sdlc-repair-worker"
	committerEmail = "sdlc-repair@control-plane.local"
)

// FixBranchName is the branch name the Repair Worker publishes to,
// per spec.md §4.5: "fix/<session-id>".
func FixBranchName(sessionID string) string {
	return "fix/" + sessionID
}

// PublishFix creates the fix branch from the clone's current HEAD, stages
// every modified file, commits with a message embedding summary and
// instructions, and pushes with upstream tracking. A push failure (denied
// permission, branch already exists on the remote) is terminal per spec.md
// §4.5 — no retry.
func (c *Clone) PublishFix(ctx context.Context, sessionID, summary, instructions string) (string, error) {
	branchName := FixBranchName(sessionID)
	ref := plumbing.NewBranchReferenceName(branchName)

	wt, err := c.repo.Worktree()
	if err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to open worktree")
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: true}); err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindPushDenied, err, "failed to create fix branch")
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to stage changes")
	}

	message := fmt.Sprintf("%s\n\nsession: %s\ninstructions: %s", summary, sessionID, instructions)
	sig := &object.Signature{Name: committerName, Email: committerEmail, When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to commit fix")
	}

	branchCfg := &config.Branch{Name: branchName, Remote: "origin", Merge: ref}
	if err := c.repo.CreateBranch(branchCfg); err != nil && !errors.Is(err, git.ErrBranchExists) {
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to configure upstream tracking")
	}

	err = c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
	})
	if err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindPushDenied, err, "push failed")
	}

	return branchName, nil
}
