package coordinator_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ambient-sdlc/control-plane/internal/coordinator"
	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

var _ = Describe("Step", func() {
	var (
		now         time.Time
		budget      time.Duration
		maxAttempts int
	)

	BeforeEach(func() {
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		budget = 15 * time.Minute
		maxAttempts = 3
	})

	Describe("the full deploy-fail, repair, retry, verify-succeed loop (scenario 6)", func() {
		It("walks S0 -> S1 -> S4 -> S5 -> S0 -> S1 -> S2 -> S3 -> S_ok with attempt count 2", func() {
			state := coordinator.NewState("sdlc-1", "https://example.com/repo.git", "main", "", nil, now)

			d1 := coordinator.Step(state, now, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d1.State.Phase).To(Equal(coordinator.PhaseAwaitDeploy))
			Expect(d1.Spawn).NotTo(BeNil())
			Expect(d1.Spawn.Kind).To(Equal(session.KindDeploy))
			Expect(d1.Wait).To(BeTrue())

			d2 := coordinator.Step(d1.State, now, coordinator.ChildProjection{
				Terminal:  true,
				Outcome:   session.OutcomeFailed,
				ErrorText: "stack ROLLBACK_COMPLETE",
			}, budget, maxAttempts)
			Expect(d2.State.Phase).To(Equal(coordinator.PhaseStartRepair))
			Expect(d2.State.PendingInstructions).To(ContainSubstring("ROLLBACK_COMPLETE"))

			d3 := coordinator.Step(d2.State, now, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d3.State.Phase).To(Equal(coordinator.PhaseAwaitRepair))
			Expect(d3.Spawn.Kind).To(Equal(session.KindRepair))

			repairPayload, _ := json.Marshal(map[string]interface{}{
				"branch":  "fix/sdlc-1",
				"summary": "widened timeout",
				"followOnDeployJob": map[string]interface{}{
					"repoUrl": "https://example.com/repo.git",
					"branch":  "fix/sdlc-1",
				},
			})
			d4 := coordinator.Step(d3.State, now, coordinator.ChildProjection{
				Terminal:    true,
				Outcome:     session.OutcomeSuccess,
				PayloadJSON: string(repairPayload),
			}, budget, maxAttempts)
			Expect(d4.State.Phase).To(Equal(coordinator.PhaseStart))
			Expect(d4.State.Attempt).To(Equal(2))
			Expect(d4.State.Branch).To(Equal("fix/sdlc-1"))

			d5 := coordinator.Step(d4.State, now, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d5.State.Phase).To(Equal(coordinator.PhaseAwaitDeploy))
			Expect(d5.Spawn.Kind).To(Equal(session.KindDeploy))

			deployPayload, _ := json.Marshal(map[string]string{"apiUrl": "https://api.example.com"})
			d6 := coordinator.Step(d5.State, now, coordinator.ChildProjection{
				Terminal:    true,
				Outcome:     session.OutcomeSuccess,
				PayloadJSON: string(deployPayload),
			}, budget, maxAttempts)
			Expect(d6.State.Phase).To(Equal(coordinator.PhaseStartVerify))
			Expect(d6.State.StackInfo).To(HaveKeyWithValue("apiUrl", "https://api.example.com"))

			d7 := coordinator.Step(d6.State, now, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d7.State.Phase).To(Equal(coordinator.PhaseAwaitVerify))
			Expect(d7.Spawn.Kind).To(Equal(session.KindVerify))

			d8 := coordinator.Step(d7.State, now, coordinator.ChildProjection{
				Terminal: true,
				Outcome:  session.OutcomeSuccess,
			}, budget, maxAttempts)
			Expect(d8.Terminal).To(BeTrue())
			Expect(d8.Outcome).To(Equal(session.OutcomeSuccess))
			Expect(d8.State.Attempt).To(Equal(2))
			Expect(d8.Message).To(ContainSubstring("2 attempt"))
		})
	})

	Describe("wall-clock budget", func() {
		It("fails the session once elapsed time exceeds the budget, regardless of phase", func() {
			state := coordinator.NewState("sdlc-2", "https://example.com/repo.git", "main", "", nil, now)
			later := now.Add(16 * time.Minute)

			d := coordinator.Step(state, later, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d.Terminal).To(BeTrue())
			Expect(d.Outcome).To(Equal(session.OutcomeFailed))
			Expect(d.TerminalKind).To(Equal(sdlcerr.KindBudgetExhausted))
		})
	})

	Describe("attempt budget", func() {
		It("fails once a successful repair would push the attempt count past the budget", func() {
			state := coordinator.NewState("sdlc-3", "https://example.com/repo.git", "main", "", nil, now)
			state.Phase = coordinator.PhaseAwaitRepair
			state.Attempt = 3
			state.ChildSessionID = "repair-x"

			repairPayload, _ := json.Marshal(map[string]interface{}{
				"followOnDeployJob": map[string]interface{}{"branch": "fix/sdlc-3"},
			})
			d := coordinator.Step(state, now, coordinator.ChildProjection{
				Terminal:    true,
				Outcome:     session.OutcomeSuccess,
				PayloadJSON: string(repairPayload),
			}, budget, 3)
			Expect(d.Terminal).To(BeTrue())
			Expect(d.Outcome).To(Equal(session.OutcomeFailed))
			Expect(d.TerminalKind).To(Equal(sdlcerr.KindBudgetExhausted))
		})
	})

	Describe("transient status-probe failures", func() {
		It("tolerates up to 5 consecutive transient failures and fails on the 6th", func() {
			state := coordinator.NewState("sdlc-4", "https://example.com/repo.git", "main", "", nil, now)
			state.Phase = coordinator.PhaseAwaitDeploy
			state.ChildSessionID = "deploy-x"

			for i := 0; i < 5; i++ {
				d := coordinator.Step(state, now, coordinator.ChildProjection{TransientErr: true}, budget, maxAttempts)
				Expect(d.Terminal).To(BeFalse(), "iteration %d should still be waiting", i)
				Expect(d.State.ConsecutiveTransientFailures).To(Equal(i + 1))
				state = d.State
			}

			d := coordinator.Step(state, now, coordinator.ChildProjection{TransientErr: true}, budget, maxAttempts)
			Expect(d.Terminal).To(BeTrue())
			Expect(d.TerminalKind).To(Equal(sdlcerr.KindTransient))
		})

		It("resets the counter once a non-transient observation arrives", func() {
			state := coordinator.NewState("sdlc-5", "https://example.com/repo.git", "main", "", nil, now)
			state.Phase = coordinator.PhaseAwaitDeploy
			state.ChildSessionID = "deploy-x"
			state.ConsecutiveTransientFailures = 4

			d := coordinator.Step(state, now, coordinator.ChildProjection{}, budget, maxAttempts)
			Expect(d.State.ConsecutiveTransientFailures).To(Equal(0))
		})
	})

	Describe("verification failure", func() {
		It("routes to repair with instructions citing the verification failure", func() {
			state := coordinator.NewState("sdlc-6", "https://example.com/repo.git", "main", "", nil, now)
			state.Phase = coordinator.PhaseAwaitVerify
			state.ChildSessionID = "verify-x"

			d := coordinator.Step(state, now, coordinator.ChildProjection{
				Terminal: true,
				Outcome:  session.OutcomeFailed,
				Message:  "scenario \"create then read\" failed at step 2: expected 200, got 500",
			}, budget, maxAttempts)
			Expect(d.State.Phase).To(Equal(coordinator.PhaseStartRepair))
			Expect(d.State.PendingInstructions).To(ContainSubstring("expected 200, got 500"))
		})
	})
})
