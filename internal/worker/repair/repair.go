// Package repair implements the Repair Worker (spec.md §4.5): plan a fix
// with the language model, rewrite the named files, and publish the result
// as a new branch the Coordinator can feed back into deployment.
package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ambient-sdlc/control-plane/internal/aiclient"
	"github.com/ambient-sdlc/control-plane/internal/gitops"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// scanFileCap bounds the file listing sent to the planning prompt, the same
// prompt-length-safety rationale as the Verification Worker's scan phase.
const scanFileCap = 200

// ignoredDirs mirrors the iacclassifier/verify ignore list.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// FollowOnDeployJob is the synthesized payload the Coordinator feeds to the
// Deployment Worker after a successful repair (spec.md §4.5 "Output").
type FollowOnDeployJob struct {
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath,omitempty"`
	StackInfo map[string]string `json:"stackInfo,omitempty"`
}

// Result is the repair session's terminal payload.
type Result struct {
	Branch      string            `json:"branch"`
	Summary     string            `json:"summary"`
	FollowOn    FollowOnDeployJob `json:"followOnDeployJob"`
	FilesTouched []string         `json:"filesTouched"`
}

// Worker runs repair jobs to completion.
type Worker struct {
	Store *session.Store
	AI    *aiclient.Client
}

func New(store *session.Store, ai *aiclient.Client) *Worker {
	return &Worker{Store: store, AI: ai}
}

// Process runs one repair job end to end, phases `cloning -> planning ->
// rewriting -> branching -> pushing -> terminal`.
func (w *Worker) Process(ctx context.Context, job jobs.RepairJob) (err error) {
	clone, err := gitops.CloneShallow(ctx, job.RepoURL, job.Branch, job.SubPath)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}
	defer clone.Cleanup()
	defer func() {
		if r := recover(); r != nil {
			clone.Cleanup()
			err = w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindTransient, fmt.Sprintf("worker panic: %v", r)))
		}
	}()
	w.event(ctx, job.SessionID, "cloning", "repository cloned")

	w.event(ctx, job.SessionID, "planning", "asking model for a fix plan")
	fileList := listFiles(clone.Root)
	plan, err := w.AI.Plan(ctx, job.Instructions, fileList, job.StackInfo)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	w.event(ctx, job.SessionID, "rewriting", fmt.Sprintf("rewriting %d file(s)", len(plan.FilesToModify)))
	currentContent := make(map[string]string, len(plan.FilesToModify))
	for _, path := range plan.FilesToModify {
		content, readErr := os.ReadFile(filepath.Join(clone.Root, filepath.FromSlash(path)))
		if readErr == nil {
			currentContent[path] = string(content)
		}
	}

	rewrite, err := w.AI.Rewrite(ctx, plan, currentContent)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	touched := make([]string, 0, len(rewrite.Files))
	for path, content := range rewrite.Files {
		fullPath := filepath.Join(clone.Root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, err, "failed to create parent directory"))
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, err, "failed to write rewritten file"))
		}
		touched = append(touched, path)
	}

	w.event(ctx, job.SessionID, "branching", "creating fix branch")
	w.event(ctx, job.SessionID, "pushing", "pushing fix branch upstream")
	branch, err := clone.PublishFix(ctx, job.SessionID, plan.Summary, job.Instructions)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	result := Result{
		Branch:  branch,
		Summary: plan.Summary,
		FollowOn: FollowOnDeployJob{
			RepoURL:   job.RepoURL,
			Branch:    branch,
			SubPath:   job.SubPath,
			StackInfo: job.StackInfo,
		},
		FilesTouched: touched,
	}
	payload, _ := json.Marshal(result)

	return w.Store.Append(ctx, job.SessionID, session.Event{
		Timestamp:   time.Now(),
		Phase:       "terminal",
		Message:     fmt.Sprintf("repair published to %s", branch),
		Outcome:     session.OutcomeSuccess,
		PayloadJSON: string(payload),
	})
}

func listFiles(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk
		}
		if len(out) >= scanFileCap {
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
		return nil
	})
	return out
}

func (w *Worker) event(ctx context.Context, sessionID string, phase session.Phase, message string) {
	_ = w.Store.Append(ctx, sessionID, session.Event{Timestamp: time.Now(), Phase: phase, Message: message, LogLine: message})
}

func (w *Worker) terminalFailure(ctx context.Context, sessionID string, cause error) error {
	message := "repair failed"
	if e, ok := sdlcerr.As(cause); ok {
		message = e.Message
	}
	return w.Store.Append(ctx, sessionID, session.Event{
		Timestamp: time.Now(),
		Phase:     "terminal",
		Message:   message,
		Outcome:   session.OutcomeFailed,
		ErrorText: cause.Error(),
		LogLine:   cause.Error(),
	})
}
