package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// Driver is the I/O shell around Step: it dequeues one sdlc job at a time,
// reconstructs State from the session's event log, calls Step, and applies
// the resulting Decision (spawning child sessions, persisting state,
// re-enqueueing the wait). cmd/coordinator calls RunOnce once per process
// invocation and then exits.
type Driver struct {
	Store           *session.Store
	Queue           queue.Queue
	WallClockBudget time.Duration
	MaxAttempts     int
	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func New(store *session.Store, q queue.Queue, wallClockBudget time.Duration, maxAttempts int) *Driver {
	return &Driver{Store: store, Queue: q, WallClockBudget: wallClockBudget, MaxAttempts: maxAttempts, Clock: time.Now}
}

// RunOnce dequeues and processes at most one sdlc job. ok is false if the
// queue had nothing ready.
func (d *Driver) RunOnce(ctx context.Context) (ok bool, err error) {
	job, ok, err := d.Queue.Dequeue(ctx, queue.SDLC)
	if err != nil || !ok {
		return ok, err
	}

	var req jobs.SDLCJob
	if err := json.Unmarshal([]byte(job.PayloadJSON), &req); err != nil {
		return true, fmt.Errorf("coordinator: malformed sdlc job: %w", err)
	}

	now := d.Clock()
	state, err := d.loadState(ctx, req, now)
	if err != nil {
		return true, err
	}

	var child ChildProjection
	if isAwaitPhase(state.Phase) {
		child = d.projectChild(ctx, state.ChildSessionID)
	}

	decision := Step(state, now, child, d.WallClockBudget, d.MaxAttempts)

	if decision.Spawn != nil {
		if err := d.spawn(ctx, *decision.Spawn, now); err != nil {
			return true, err
		}
	}

	if err := d.persist(ctx, req.SessionID, now, decision); err != nil {
		return true, err
	}

	if decision.Wait {
		if err := d.Queue.EnqueueAfter(ctx, queue.SDLC, job, waitPollInterval); err != nil {
			return true, err
		}
	}
	return true, nil
}

func isAwaitPhase(p Phase) bool {
	return p == PhaseAwaitDeploy || p == PhaseAwaitVerify || p == PhaseAwaitRepair
}

func (d *Driver) loadState(ctx context.Context, req jobs.SDLCJob, now time.Time) (State, error) {
	proj, err := d.Store.Project(ctx, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return State{}, fmt.Errorf("coordinator: sdlc session %s not created before being queued", req.SessionID)
	}
	if err != nil {
		return State{}, err
	}
	if proj.PayloadJSON == "" {
		return NewState(req.SessionID, req.RepoURL, req.Branch, req.SubPath, req.StackInfo, now), nil
	}
	var st State
	if err := json.Unmarshal([]byte(proj.PayloadJSON), &st); err != nil {
		return State{}, fmt.Errorf("coordinator: corrupt state payload: %w", err)
	}
	return st, nil
}

func (d *Driver) projectChild(ctx context.Context, childSessionID string) ChildProjection {
	proj, err := d.Store.Project(ctx, childSessionID)
	if errors.Is(err, session.ErrNotFound) {
		return ChildProjection{TransientErr: true}
	}
	if err != nil {
		return ChildProjection{TransientErr: true}
	}
	return ChildProjection{
		Terminal:    proj.Terminal(),
		Outcome:     proj.Outcome,
		ErrorText:   proj.ErrorText,
		Message:     proj.Message,
		PayloadJSON: proj.PayloadJSON,
	}
}

func (d *Driver) spawn(ctx context.Context, s Spawn, now time.Time) error {
	var (
		childID string
		repoURL string
		branch  string
		subPath string
		payload []byte
		err     error
	)
	switch s.Kind {
	case session.KindDeploy:
		childID, repoURL, branch, subPath = s.DeployJob.SessionID, s.DeployJob.RepoURL, s.DeployJob.Branch, s.DeployJob.SubPath
		payload, err = json.Marshal(s.DeployJob)
	case session.KindVerify:
		childID, repoURL, branch, subPath = s.VerifyJob.SessionID, s.VerifyJob.RepoURL, s.VerifyJob.Branch, s.VerifyJob.SubPath
		payload, err = json.Marshal(s.VerifyJob)
	case session.KindRepair:
		childID, repoURL, branch, subPath = s.RepairJob.SessionID, s.RepairJob.RepoURL, s.RepairJob.Branch, s.RepairJob.SubPath
		payload, err = json.Marshal(s.RepairJob)
	default:
		return fmt.Errorf("coordinator: unknown spawn kind %q", s.Kind)
	}
	if err != nil {
		return err
	}

	if err := d.Store.Create(ctx, session.CreateParams{
		ID: childID, Kind: s.Kind, RepoURL: repoURL, Branch: branch, SubPath: subPath,
	}, now); err != nil {
		return err
	}
	return d.Queue.Enqueue(ctx, s.Queue, queue.Job{PayloadJSON: string(payload)})
}

func (d *Driver) persist(ctx context.Context, sessionID string, now time.Time, decision Decision) error {
	payload, err := json.Marshal(decision.State)
	if err != nil {
		return err
	}
	event := session.Event{
		Timestamp:   now,
		Phase:       session.Phase(decision.State.Phase),
		Message:     decision.Message,
		LogLine:     decision.Message,
		PayloadJSON: string(payload),
	}
	if decision.Terminal {
		event.Phase = "terminal"
		event.Outcome = decision.Outcome
		if decision.Outcome == session.OutcomeFailed {
			event.ErrorText = decision.Message
		}
	}
	return d.Store.Append(ctx, sessionID, event)
}
