package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// waitPollInterval is the re-enqueue delay for S1/S3/S5's wait states
// (spec.md §4.6 "Polling"); the coordinator is never a process that
// survives the wait, it is re-dequeued every waitPollInterval instead.
const waitPollInterval = 5 * time.Second

// Spawn describes a new child session the driver must Create then enqueue.
type Spawn struct {
	Kind  session.Kind
	Queue queue.Name
	// Exactly one of these is set, matching Kind.
	DeployJob *jobs.DeployJob
	VerifyJob *jobs.VerifyJob
	RepairJob *jobs.RepairJob
}

// Decision is everything the driver needs to persist and act on after one
// Step call.
type Decision struct {
	State        State
	Spawn        *Spawn
	Wait         bool
	Terminal     bool
	Outcome      session.Outcome
	Message      string
	TerminalKind sdlcerr.Kind
}

// Step advances one sdlc session by exactly one state transition. It is a
// pure function of its inputs: no I/O, no clock reads beyond now, so it can
// be exercised directly by tests walking a full scenario without a Store or
// Queue.
func Step(state State, now time.Time, child ChildProjection, wallClockBudget time.Duration, maxAttempts int) Decision {
	if elapsed := now.Sub(state.StartedAt); elapsed > wallClockBudget {
		return fail(state, sdlcerr.KindBudgetExhausted, "sdlc wall-clock budget exceeded")
	}

	switch state.Phase {
	case PhaseStart:
		return startDeploy(state)

	case PhaseAwaitDeploy:
		return stepAwaitDeploy(state, child)

	case PhaseStartVerify:
		return startVerify(state)

	case PhaseAwaitVerify:
		return stepAwaitVerify(state, child)

	case PhaseStartRepair:
		return startRepair(state)

	case PhaseAwaitRepair:
		return stepAwaitRepair(state, child, maxAttempts)

	default:
		return fail(state, sdlcerr.KindValidation, fmt.Sprintf("coordinator: unknown phase %q", state.Phase))
	}
}

func startDeploy(state State) Decision {
	childID := session.NewSessionID(session.KindDeploy)
	next := state
	next.Phase = PhaseAwaitDeploy
	next.ChildSessionID = childID
	next.ConsecutiveTransientFailures = 0
	return Decision{
		State: next,
		Spawn: &Spawn{
			Kind:  session.KindDeploy,
			Queue: queue.Deploy,
			DeployJob: &jobs.DeployJob{
				SessionID: childID,
				RepoURL:   state.RepoURL,
				Branch:    state.Branch,
				SubPath:   state.SubPath,
				StackInfo: state.StackInfo,
			},
		},
		Wait:    true,
		Message: "deploy started",
	}
}

func stepAwaitDeploy(state State, child ChildProjection) Decision {
	if waiting := observeChild(&state, child); waiting != nil {
		return *waiting
	}
	if child.Outcome == session.OutcomeSuccess {
		next := state
		next.Phase = PhaseStartVerify
		next.StackInfo = mergeStackInfo(state.StackInfo, child.PayloadJSON)
		return Decision{State: next, Wait: true, Message: "deploy succeeded"}
	}
	next := state
	next.Phase = PhaseStartRepair
	next.PendingInstructions = fmt.Sprintf("deployment failed: %s", child.ErrorText)
	return Decision{State: next, Wait: true, Message: "deploy failed, repairing"}
}

func startVerify(state State) Decision {
	childID := session.NewSessionID(session.KindVerify)
	next := state
	next.Phase = PhaseAwaitVerify
	next.ChildSessionID = childID
	next.ConsecutiveTransientFailures = 0
	return Decision{
		State: next,
		Spawn: &Spawn{
			Kind:  session.KindVerify,
			Queue: queue.Verify,
			VerifyJob: &jobs.VerifyJob{
				SessionID: childID,
				RepoURL:   state.RepoURL,
				Branch:    state.Branch,
				SubPath:   state.SubPath,
				StackInfo: state.StackInfo,
			},
		},
		Wait:    true,
		Message: "verification started",
	}
}

func stepAwaitVerify(state State, child ChildProjection) Decision {
	if waiting := observeChild(&state, child); waiting != nil {
		return *waiting
	}
	if child.Outcome == session.OutcomeSuccess {
		return Decision{
			State:    withPhase(state, PhaseOK),
			Terminal: true,
			Outcome:  session.OutcomeSuccess,
			Message:  fmt.Sprintf("sdlc succeeded after %d attempt(s)", state.Attempt),
		}
	}
	next := state
	next.Phase = PhaseStartRepair
	next.PendingInstructions = fmt.Sprintf("verification failed: %s", describeVerifyFailure(child))
	return Decision{State: next, Wait: true, Message: "verification failed, repairing"}
}

func startRepair(state State) Decision {
	childID := session.NewSessionID(session.KindRepair)
	next := state
	next.Phase = PhaseAwaitRepair
	next.ChildSessionID = childID
	next.ConsecutiveTransientFailures = 0
	return Decision{
		State: next,
		Spawn: &Spawn{
			Kind:  session.KindRepair,
			Queue: queue.Repair,
			RepairJob: &jobs.RepairJob{
				SessionID:    childID,
				RepoURL:      state.RepoURL,
				Branch:       state.Branch,
				SubPath:      state.SubPath,
				Instructions: state.PendingInstructions,
				StackInfo:    state.StackInfo,
			},
		},
		Wait:    true,
		Message: "repair started",
	}
}

func stepAwaitRepair(state State, child ChildProjection, maxAttempts int) Decision {
	if waiting := observeChild(&state, child); waiting != nil {
		return *waiting
	}
	if child.Outcome != session.OutcomeSuccess {
		return fail(state, sdlcerr.KindProvisioning, fmt.Sprintf("repair failed: %s", child.ErrorText))
	}

	var result struct {
		FollowOn struct {
			Branch    string            `json:"branch"`
			RepoURL   string            `json:"repoUrl"`
			SubPath   string            `json:"subPath"`
			StackInfo map[string]string `json:"stackInfo"`
		} `json:"followOnDeployJob"`
	}
	_ = json.Unmarshal([]byte(child.PayloadJSON), &result)

	next := state
	next.Branch = result.FollowOn.Branch
	if result.FollowOn.RepoURL != "" {
		next.RepoURL = result.FollowOn.RepoURL
	}
	if result.FollowOn.StackInfo != nil {
		next.StackInfo = result.FollowOn.StackInfo
	}
	next.PendingInstructions = ""
	next.Attempt++

	if next.Attempt > maxAttempts {
		return fail(next, sdlcerr.KindBudgetExhausted, "sdlc attempt budget exhausted after repair")
	}
	next.Phase = PhaseStart
	return Decision{State: next, Wait: true, Message: "repair succeeded, retrying deploy"}
}

// observeChild folds a ChildProjection that is not yet a terminal success or
// failure into a Decision to keep waiting, mutating state's transient-failure
// counter in place. Returns nil when the child has reached a terminal
// outcome and the caller should branch on child.Outcome.
func observeChild(state *State, child ChildProjection) *Decision {
	if child.TransientErr {
		state.ConsecutiveTransientFailures++
		if state.ConsecutiveTransientFailures > maxConsecutiveTransientFailures {
			d := fail(*state, sdlcerr.KindTransient, "exceeded consecutive transient status-probe failures")
			return &d
		}
		return &Decision{State: *state, Wait: true, Message: "transient status-probe failure, retrying"}
	}
	if !child.Terminal {
		state.ConsecutiveTransientFailures = 0
		return &Decision{State: *state, Wait: true, Message: "awaiting child session"}
	}
	state.ConsecutiveTransientFailures = 0
	return nil
}

func fail(state State, kind sdlcerr.Kind, message string) Decision {
	return Decision{
		State:        withPhase(state, PhaseFail),
		Terminal:     true,
		Outcome:      session.OutcomeFailed,
		Message:      message,
		TerminalKind: kind,
	}
}

func withPhase(state State, phase Phase) State {
	next := state
	next.Phase = phase
	return next
}

// mergeStackInfo folds the deploy session's terminal resources (stack
// outputs, function ARN, etc.) into the stack info passed on to the next
// phase, so the Verification Worker can find a base URL per spec.md §4.4.
func mergeStackInfo(existing map[string]string, deployPayloadJSON string) map[string]string {
	merged := map[string]string{}
	for k, v := range existing {
		merged[k] = v
	}
	var resources map[string]string
	if err := json.Unmarshal([]byte(deployPayloadJSON), &resources); err == nil {
		for k, v := range resources {
			merged[k] = v
		}
	}
	return merged
}

func describeVerifyFailure(child ChildProjection) string {
	if child.Message != "" {
		return child.Message
	}
	return child.ErrorText
}
