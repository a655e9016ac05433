package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamTypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ambient-sdlc/control-plane/internal/artifact"
	"github.com/ambient-sdlc/control-plane/internal/cloudclient"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// localRepo initializes a throwaway git repository on disk with files and
// a named branch, so CloneShallow can clone it with a plain filesystem
// path - no network required.
func localRepo(t *testing.T, branch string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@test.local", When: time.Now()},
	})
	require.NoError(t, err)

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
	require.NoError(t, repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))))

	return dir
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	store, err := session.Open(db)
	require.NoError(t, err)
	return store
}

type fakeUploader struct {
	puts map[string][]byte
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	buf := make([]byte, 0)
	tmp := make([]byte, 4096)
	for {
		n, err := in.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	f.puts[*in.Key] = buf
	return &manager.UploadOutput{}, nil
}

func (f *fakeUploader) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, nil
}

type fakeIAM struct{ roles map[string]string }

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	arn := f.roles[*in.RoleName]
	return &iam.GetRoleOutput{Role: &iamTypes.Role{Arn: &arn}}, nil
}
func (f *fakeIAM) CreateRole(context.Context, *iam.CreateRoleInput, ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	return nil, nil
}
func (f *fakeIAM) AttachRolePolicy(context.Context, *iam.AttachRolePolicyInput, ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	return nil, nil
}

type fakeLambda struct{ functions map[string]string }

func (f *fakeLambda) GetFunction(_ context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	return nil, notFoundErr{}
}
func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + *in.FunctionName
	f.functions[*in.FunctionName] = arn
	return &lambda.CreateFunctionOutput{FunctionArn: &arn, Runtime: lambdaTypes.RuntimeNodejs20x}, nil
}
func (f *fakeLambda) UpdateFunctionCode(_ context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	arn := f.functions[*in.FunctionName]
	return &lambda.UpdateFunctionCodeOutput{FunctionArn: &arn, Runtime: lambdaTypes.RuntimeNodejs20x}, nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string                   { return "ResourceNotFoundException" }
func (notFoundErr) ErrorCode() string               { return "ResourceNotFoundException" }
func (notFoundErr) ErrorMessage() string            { return "not found" }
func (notFoundErr) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func TestProcessSimpleLambdaSucceeds(t *testing.T) {
	repoDir := localRepo(t, "main", map[string]string{
		"package.json": `{"name":"fn"}`,
		"index.js":     "exports.handler = async () => ({statusCode: 200});",
	})

	store := newTestStore(t)
	ctx := context.Background()
	sessionID := session.NewSessionID(session.KindDeploy)
	require.NoError(t, store.Create(ctx, session.CreateParams{ID: sessionID, Kind: session.KindDeploy, RepoURL: repoDir, Branch: "main"}, time.Now()))

	uploader := &fakeUploader{puts: map[string][]byte{}}
	artifacts := artifact.New("test-bucket", uploader, uploader)
	cloud := cloudclient.New(&fakeIAM{roles: map[string]string{cloudclient.RoleName(sessionID): "arn:aws:iam::123456789012:role/exec"}}, &fakeLambda{functions: map[string]string{}}, nil)

	w := New(store, artifacts, cloud, time.Millisecond, time.Second)
	err := w.Process(ctx, jobs.DeployJob{SessionID: sessionID, RepoURL: repoDir, Branch: "main"})
	require.NoError(t, err)

	state, err := store.Project(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, session.OutcomeSuccess, state.Outcome)
	require.Contains(t, state.PayloadJSON, "functionName")
	require.Len(t, uploader.puts, 1)
}

func TestProcessUnsupportedIaCFailsWithoutCloudCalls(t *testing.T) {
	repoDir := localRepo(t, "main", map[string]string{
		"cdk.json": `{"app": "node bin/app.js"}`,
	})

	store := newTestStore(t)
	ctx := context.Background()
	sessionID := session.NewSessionID(session.KindDeploy)
	require.NoError(t, store.Create(ctx, session.CreateParams{ID: sessionID, Kind: session.KindDeploy, RepoURL: repoDir, Branch: "main"}, time.Now()))

	w := New(store, nil, nil, time.Millisecond, time.Second)
	err := w.Process(ctx, jobs.DeployJob{SessionID: sessionID, RepoURL: repoDir, Branch: "main"})
	require.NoError(t, err)

	state, err := store.Project(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, session.OutcomeFailed, state.Outcome)
	require.Contains(t, state.ErrorText, "external CLI tools")
}
