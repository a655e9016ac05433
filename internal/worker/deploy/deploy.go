// Package deploy implements the Deployment Worker (spec.md §4.3): clone,
// classify, package, provision, and poll a single deploy job to a terminal
// session outcome.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ambient-sdlc/control-plane/internal/artifact"
	"github.com/ambient-sdlc/control-plane/internal/cloudclient"
	"github.com/ambient-sdlc/control-plane/internal/gitops"
	"github.com/ambient-sdlc/control-plane/internal/iacclassifier"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// Worker runs deploy jobs to completion. A Worker is stateless across
// invocations; every mutable fact lives in the Session Store or the cloned
// working directory (cleaned up on exit).
type Worker struct {
	Store        *session.Store
	Artifacts    *artifact.Store
	Cloud        *cloudclient.Client
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// New builds a Worker, applying spec.md §6 defaults when interval/timeout
// are zero.
func New(store *session.Store, artifacts *artifact.Store, cloud *cloudclient.Client, pollInterval, pollTimeout time.Duration) *Worker {
	if pollInterval == 0 {
		pollInterval = 10 * time.Second
	}
	if pollTimeout == 0 {
		pollTimeout = 60 * time.Minute
	}
	return &Worker{Store: store, Artifacts: artifacts, Cloud: cloud, PollInterval: pollInterval, PollTimeout: pollTimeout}
}

// Process runs one deploy job end to end, phases `cloning -> detecting ->
// packaging -> provisioning -> polling -> terminal`. It always writes a
// terminal session event before returning; the returned error is non-nil
// only when the session itself could not be written to (a Store failure),
// not when the deployment's own outcome is failed.
func (w *Worker) Process(ctx context.Context, job jobs.DeployJob) (err error) {
	clone, err := gitops.CloneShallow(ctx, job.RepoURL, job.Branch, job.SubPath)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}
	defer clone.Cleanup()
	defer func() {
		if r := recover(); r != nil {
			clone.Cleanup()
			err = w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindProvisioning, fmt.Sprintf("worker panic: %v", r)))
		}
	}()

	w.event(ctx, job.SessionID, "cloning", "repository cloned")

	w.event(ctx, job.SessionID, "detecting", "classifying infrastructure-as-code kind")
	kind := iacclassifier.Classify(iacclassifier.DirSnapshot{Root: clone.Root})

	switch kind {
	case iacclassifier.KindSimpleLambda:
		return w.deploySimpleLambda(ctx, job, clone)
	case iacclassifier.KindSAM:
		return w.deploySAM(ctx, job, clone)
	case iacclassifier.KindCloudFormation:
		return w.deployCloudFormation(ctx, job, clone)
	default:
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindUnsupportedIaC,
			fmt.Sprintf("IaC kind %q requires external CLI tools and is not supported", kind)))
	}
}

func (w *Worker) deploySimpleLambda(ctx context.Context, job jobs.DeployJob, clone *gitops.Clone) error {
	w.event(ctx, job.SessionID, "packaging", "archiving source tree")
	zipBytes, err := artifact.ZipDir(clone.Root)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, err, "failed to archive source tree"))
	}
	key := artifact.FunctionKey(job.SessionID, "zip")
	artifactURI, err := w.Artifacts.Put(ctx, key, zipBytes)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindTransient, err, "failed to upload archive"))
	}

	w.event(ctx, job.SessionID, "provisioning", "ensuring execution role")
	roleName := cloudclient.RoleName(job.SessionID)
	roleARN, err := w.Cloud.EnsureExecutionRole(ctx, roleName)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	functionName := cloudclient.FunctionName(job.SessionID)
	result, err := w.Cloud.CreateOrUpdateFunction(ctx, functionName, roleARN, zipBytes)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	w.event(ctx, job.SessionID, "polling", "lambda function provisioned synchronously")

	return w.terminalSuccess(ctx, job.SessionID, map[string]string{
		"functionName": result.FunctionName,
		"functionArn":  result.FunctionArn,
		"runtime":      result.Runtime,
		"artifactUri":  artifactURI,
	})
}

func (w *Worker) deploySAM(ctx context.Context, job jobs.DeployJob, clone *gitops.Clone) error {
	w.event(ctx, job.SessionID, "packaging", "parsing template and archiving function code")
	_, content, err := readTemplate(clone.Root)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	refs, root, err := ParseFunctions(content)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, err, "malformed template"))
	}

	replacements := make(map[string]string, len(refs))
	for _, ref := range refs {
		codeDir := filepath.Join(clone.Root, filepath.FromSlash(ref.CodeURI))
		zipBytes, zipErr := artifact.ZipDir(codeDir)
		if zipErr != nil {
			return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, zipErr,
				fmt.Sprintf("missing function code directory for %s", ref.LogicalID)))
		}
		key := artifact.FunctionsKey(job.SessionID, ref.LogicalID, "zip")
		uri, putErr := w.Artifacts.Put(ctx, key, zipBytes)
		if putErr != nil {
			return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindTransient, putErr, "failed to upload function archive"))
		}
		replacements[ref.LogicalID] = uri
	}

	rewritten, err := RewriteCodeURIs(root, replacements)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.Wrap(sdlcerr.KindPackageIntegrity, err, "failed to rewrite template"))
	}

	return w.provisionStack(ctx, job, "sam", rewritten)
}

func (w *Worker) deployCloudFormation(ctx context.Context, job jobs.DeployJob, clone *gitops.Clone) error {
	_, content, err := readTemplate(clone.Root)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}
	return w.provisionStack(ctx, job, "cloudformation", content)
}

func (w *Worker) provisionStack(ctx context.Context, job jobs.DeployJob, framework, templateBody string) error {
	stackName := cloudclient.StackName(framework, job.SessionID)

	w.event(ctx, job.SessionID, "provisioning", fmt.Sprintf("submitting stack %s", stackName))
	if err := w.Cloud.SubmitStack(ctx, stackName, job.SessionID, templateBody); err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	w.event(ctx, job.SessionID, "polling", fmt.Sprintf("polling stack %s", stackName))
	result, err := w.Cloud.WaitForTerminal(ctx, stackName, w.PollInterval, w.PollTimeout)
	if err != nil {
		return w.terminalFailure(ctx, job.SessionID, err)
	}

	if result.Status == cloudclient.StackFailed {
		return w.terminalFailure(ctx, job.SessionID, sdlcerr.New(sdlcerr.KindProvisioning,
			fmt.Sprintf("stack %s failed: %s", stackName, strings.Join(result.RecentEvents, "; "))))
	}

	resources := make(map[string]string, len(result.Outputs)+1)
	for k, v := range result.Outputs {
		resources[k] = v
	}
	resources["stackName"] = stackName
	return w.terminalSuccess(ctx, job.SessionID, resources)
}

func (w *Worker) event(ctx context.Context, sessionID string, phase session.Phase, message string) {
	_ = w.Store.Append(ctx, sessionID, session.Event{Timestamp: time.Now(), Phase: phase, Message: message, LogLine: message})
}

func (w *Worker) terminalFailure(ctx context.Context, sessionID string, cause error) error {
	message := "deployment failed"
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

func (w *Worker) terminalSuccess(ctx context.Context, sessionID string, resources map[string]string) error {
	payload, _ := json.Marshal(resources)
	return w.Store.Append(ctx, sessionID, session.Event{
		Timestamp:   time.Now(),
		Phase:       "terminal",
		Message:     "deployment succeeded",
		Outcome:     session.OutcomeSuccess,
		PayloadJSON: string(payload),
	})
}
