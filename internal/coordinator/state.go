// Package coordinator implements the SDLC Coordinator (spec.md §4.6): a
// pure state-transition function over S0-S5/S_ok/S_fail, threading
// deployment, verification, and repair jobs for one sdlc session.
package coordinator

import (
	"time"

	"github.com/ambient-sdlc/control-plane/internal/session"
)

// Phase is one of the coordinator's own states, persisted as the sdlc
// session's Phase.
type Phase string

const (
	PhaseStart       Phase = "start"
	PhaseAwaitDeploy Phase = "await_deploy"
	PhaseStartVerify Phase = "start_verify"
	PhaseAwaitVerify Phase = "await_verify"
	PhaseStartRepair Phase = "start_repair"
	PhaseAwaitRepair Phase = "await_repair"
	PhaseOK          Phase = "ok"
	PhaseFail        Phase = "fail"
)

// State is the coordinator's full working state for one sdlc session,
// round-tripped through the sdlc session's PayloadJSON between Step calls.
type State struct {
	Phase                        Phase             `json:"phase"`
	SessionID                    string            `json:"sessionId"`
	RepoURL                      string            `json:"repoUrl"`
	Branch                       string            `json:"branch"`
	SubPath                      string            `json:"subPath,omitempty"`
	StackInfo                    map[string]string `json:"stackInfo,omitempty"`
	ChildSessionID               string            `json:"childSessionId,omitempty"`
	Attempt                      int               `json:"attempt"`
	StartedAt                    time.Time         `json:"startedAt"`
	ConsecutiveTransientFailures int               `json:"consecutiveTransientFailures"`
	// PendingInstructions carries the fix instructions derived from the most
	// recent deploy/verify failure into the next S4 StartRepair transition.
	PendingInstructions string `json:"pendingInstructions,omitempty"`
}

// NewState seeds the initial coordinator state for a freshly-created sdlc
// session, attempt 1 per spec.md §8 scenario 6's attempt-count convention
// (the first deploy is attempt 1; a successful repair increments it).
func NewState(sessionID, repoURL, branch, subPath string, stackInfo map[string]string, now time.Time) State {
	return State{
		Phase:      PhaseStart,
		SessionID:  sessionID,
		RepoURL:    repoURL,
		Branch:     branch,
		SubPath:    subPath,
		StackInfo:  stackInfo,
		Attempt:    1,
		StartedAt:  now,
	}
}

// ChildProjection is the Step function's view of the currently-awaited
// child session, translated from session.State (or a failed projection)
// by the driver so Step itself stays a pure function of its inputs.
type ChildProjection struct {
	// TransientErr is true when the projection attempt itself failed
	// (a store read error), not when the child session is simply not yet
	// terminal. Step tolerates up to 5 consecutive occurrences of this
	// (spec.md §4.6 "Polling").
	TransientErr bool
	Terminal     bool
	Outcome      session.Outcome
	ErrorText    string
	Message      string
	PayloadJSON  string
}

// maxConsecutiveTransientFailures bounds the wait-state tolerance for a
// flaky status-probe operation (spec.md §4.6).
const maxConsecutiveTransientFailures = 5
