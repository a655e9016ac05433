package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ambient-sdlc/control-plane/internal/aiclient"
	"github.com/ambient-sdlc/control-plane/internal/featureflags"
	"github.com/ambient-sdlc/control-plane/internal/gitops"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// truncatedBodyLimit bounds the response-body excerpt recorded on a failed
// step (spec.md §4.4 "a truncated response body").
const truncatedBodyLimit = 500

// StepResult is one executed (or skipped) step's outcome.
type StepResult struct {
	Name           string `json:"name"`
	Status         string `json:"status"` // pass | fail | skip
	ExpectedStatus int    `json:"expectedStatus,omitempty"`
	ActualStatus   int    `json:"actualStatus,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMS     int64  `json:"durationMs"`
}

// ScenarioResult is one test scenario's ordered step outcomes.
type ScenarioResult struct {
	Name  string       `json:"name"`
	Steps []StepResult `json:"steps"`
}

// Worker runs verify jobs to completion.
type Worker struct {
	Store       *session.Store
	AI          *aiclient.Client
	Prober      *Prober
	ScanFileCap int
}

// New builds a Worker, applying SPEC_FULL.md §6's VERIFY_SCAN_FILE_CAP
// default when fileCap is zero.
func New(store *session.Store, ai *aiclient.Client, probeTimeout time.Duration, fileCap int) *Worker {
	if fileCap == 0 {
		fileCap = 200
	}
	return &Worker{Store: store, AI: ai, Prober: NewProber(probeTimeout), ScanFileCap: fileCap}
}

// Process runs one verify job end to end, phases `cloning -> scanning ->
// discovering -> generating -> executing -> terminal`.
func (w *Worker) Process(ctx context.Context, job jobs.VerifyJob) (err error) {
	baseURL := pickBaseURL(job.StackInfo)
	if baseURL == "" {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindValidation, "stack info names no base URL"))
	}

	clone, err := gitops.CloneShallow(ctx, job.RepoURL, job.Branch, job.SubPath)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}
	defer clone.Cleanup()
	defer func() {
		if r := recover(); r != nil {
			clone.Cleanup()
			err = w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindProbeExecution, fmt.Sprintf("worker panic: %v", r)))
		}
	}()
	w.event(ctx, job.SessionID, "cloning", "repository cloned")

	w.event(ctx, job.SessionID, "scanning", "scanning source tree")
	files := ScanSource(clone.Root, w.ScanFileCap)

	w.event(ctx, job.SessionID, "discovering", "asking model to discover API surface")
	discovered, err := w.AI.Discover(ctx, files)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}
	if discovered.BaseURL == "" {
		discovered.BaseURL = baseURL
	}

	w.event(ctx, job.SessionID, "generating", "asking model to generate a test suite")
	suite, err := w.AI.GenerateTests(ctx, discovered)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	w.event(ctx, job.SessionID, "executing", fmt.Sprintf("executing %d scenario(s)", len(suite.Tests)))
	results, anyFail := w.execute(ctx, baseURL, suite)

	payload, _ := json.Marshal(results)
	if anyFail {
		return w.terminalFailureWithPayload(ctx, job.SessionID, "one or more verification scenarios failed", string(payload))
	}
	return w.Store.Append(ctx, job.SessionID, session.Event{
		Timestamp:   time.Now(),
		Phase:       "terminal",
		Message:     successMessage(results),
		Outcome:     session.OutcomeSuccess,
		PayloadJSON: string(payload),
	})
}

// execute runs every scenario in order, independently (spec.md §4.4: no
// variable bag crosses scenarios), stopping each scenario's remaining steps
// on its first fail.
func (w *Worker) execute(ctx context.Context, baseURL string, suite aiclient.TestSuite) ([]ScenarioResult, bool) {
	results := make([]ScenarioResult, 0, len(suite.Tests))
	anyFail := false

	for _, scenario := range suite.Tests {
		bag := map[string]string{}
		scenarioResult := ScenarioResult{Name: scenario.Name}
		failed := false

		for _, step := range scenario.Steps {
			if failed {
				scenarioResult.Steps = append(scenarioResult.Steps, StepResult{Name: step.Action, Status: "skip"})
				continue
			}

			endpoint := Substitute(step.Endpoint, bag)
			headers := SubstituteHeaders(step.Headers, bag)
			body := SubstituteValue(step.Body, bag)

			probe := w.Prober.Do(ctx, baseURL, step.Method, endpoint, body, headers)
			result := StepResult{
				Name:           step.Action,
				ExpectedStatus: step.ExpectedStatus,
				ActualStatus:   probe.StatusCode,
				DurationMS:     probe.Duration.Milliseconds(),
			}

			switch {
			case probe.Err != nil:
				result.Status = "fail"
				result.Error = probe.Err.Error()
				failed, anyFail = true, true
			case probe.StatusCode != step.ExpectedStatus:
				result.Status = "fail"
				result.Error = fmt.Sprintf("expected status %d, got %d: %s", step.ExpectedStatus, probe.StatusCode, truncate(probe.Body))
				failed, anyFail = true, true
			default:
				result.Status = "pass"
				for name, path := range step.StoreVariables {
					if v, ok := ExtractPath(probe.Body, path); ok {
						bag[name] = v
					} else {
						log.Printf("verify: storeVariables path %q for %q not found in response; bound empty string", path, name)
						bag[name] = ""
					}
				}
			}
			scenarioResult.Steps = append(scenarioResult.Steps, result)
		}
		results = append(results, scenarioResult)
	}
	return results, anyFail
}

// successMessage reports the scenario count, plus a skipped-step count when
// featureflags.IncludeSkippedInSummary is enabled.
func successMessage(results []ScenarioResult) string {
	message := fmt.Sprintf("verification succeeded across %d scenario(s)", len(results))
	if !featureflags.IsEnabled(featureflags.IncludeSkippedInSummary) {
		return message
	}
	skipped := 0
	for _, scenario := range results {
		for _, step := range scenario.Steps {
			if step.Status == "skip" {
				skipped++
			}
		}
	}
	return fmt.Sprintf("%s (%d step(s) skipped)", message, skipped)
}

func pickBaseURL(stackInfo map[string]string) string {
	for _, key := range []string{"apiUrl", "baseUrl", "endpoint"} {
		if v := stackInfo[key]; v != "" {
			return v
		}
	}
	return ""
}

func truncate(body []byte) string {
	if len(body) > truncatedBodyLimit {
		return string(body[:truncatedBodyLimit]) + "...(truncated)"
	}
	return string(body)
}

func (w *Worker) event(ctx context.Context, sessionID string, phase session.Phase, message string) {
	_ = w.Store.Append(ctx, sessionID, session.Event{Timestamp: time.Now(), Phase: phase, Message: message, LogLine: message})
}

func (w *Worker) terminalFailure(ctx context.Context, sessionID string, cause error) error {
	message := "verification failed"
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

func (w *Worker) terminalFailureWithPayload(ctx context.Context, sessionID, message, payload string) error {
	return w.Store.Append(ctx, sessionID, session.Event{
		Timestamp:   time.Now(),
		Phase:       "terminal",
		Message:     message,
		Outcome:     session.OutcomeFailed,
		ErrorText:   message,
		PayloadJSON: payload,
	})
}
