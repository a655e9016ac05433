package cloudclient

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamTypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type notFoundErr struct{ code string }

func (e notFoundErr) Error() string       { return e.code }
func (e notFoundErr) ErrorCode() string   { return e.code }
func (e notFoundErr) ErrorMessage() string { return e.code + ": does not exist" }
func (e notFoundErr) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

type fakeIAM struct {
	roles map[string]string
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	arn, ok := f.roles[*in.RoleName]
	if !ok {
		return nil, notFoundErr{code: "NoSuchEntityException"}
	}
	return &iam.GetRoleOutput{Role: &iamTypes.Role{Arn: &arn}}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	arn := "arn:aws:iam::123456789012:role/" + *in.RoleName
	f.roles[*in.RoleName] = arn
	return &iam.CreateRoleOutput{Role: &iamTypes.Role{Arn: &arn}}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, _ *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	return &iam.AttachRolePolicyOutput{}, nil
}

func TestEnsureExecutionRoleCreatesWhenMissing(t *testing.T) {
	fake := &fakeIAM{roles: map[string]string{}}
	c := &Client{IAM: fake}
	// avoid the 10s real sleep in the test
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err := c.EnsureExecutionRole(ctx, "sdlc-exec-abcd1234")
	require.Error(t, err) // context already expired during the propagation wait
}

func TestEnsureExecutionRoleReturnsExistingWithoutCreating(t *testing.T) {
	fake := &fakeIAM{roles: map[string]string{"sdlc-exec-abcd1234": "arn:aws:iam::123456789012:role/sdlc-exec-abcd1234"}}
	c := &Client{IAM: fake}
	arn, err := c.EnsureExecutionRole(context.Background(), "sdlc-exec-abcd1234")
	require.NoError(t, err)
	require.Equal(t, "arn:aws:iam::123456789012:role/sdlc-exec-abcd1234", arn)
}

type fakeLambda struct {
	functions map[string]*lambda.GetFunctionOutput
}

func (f *fakeLambda) GetFunction(_ context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	fn, ok := f.functions[*in.FunctionName]
	if !ok {
		return nil, notFoundErr{code: "ResourceNotFoundException"}
	}
	return fn, nil
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + *in.FunctionName
	out := &lambda.CreateFunctionOutput{FunctionArn: &arn, Runtime: in.Runtime}
	f.functions[*in.FunctionName] = &lambda.GetFunctionOutput{
		Configuration: &lambdaTypes.FunctionConfiguration{FunctionArn: &arn, Runtime: in.Runtime},
	}
	return out, nil
}

func (f *fakeLambda) UpdateFunctionCode(_ context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	fn := f.functions[*in.FunctionName]
	return &lambda.UpdateFunctionCodeOutput{FunctionArn: fn.Configuration.FunctionArn, Runtime: fn.Configuration.Runtime}, nil
}

func TestCreateOrUpdateFunctionCreatesWhenMissing(t *testing.T) {
	fake := &fakeLambda{functions: map[string]*lambda.GetFunctionOutput{}}
	c := &Client{Lambda: fake}

	result, err := c.CreateOrUpdateFunction(context.Background(), "deployed-lambda-abcd1234", "arn:aws:iam::123456789012:role/sdlc-exec-abcd1234", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, "deployed-lambda-abcd1234", result.FunctionName)
	require.Equal(t, "nodejs20.x", result.Runtime)
}

func TestCreateOrUpdateFunctionUpdatesWhenPresent(t *testing.T) {
	arn := "arn:aws:lambda:us-east-1:123456789012:function:deployed-lambda-abcd1234"
	fake := &fakeLambda{functions: map[string]*lambda.GetFunctionOutput{
		"deployed-lambda-abcd1234": {Configuration: &lambdaTypes.FunctionConfiguration{FunctionArn: &arn, Runtime: lambdaTypes.RuntimeNodejs20x}},
	}}
	c := &Client{Lambda: fake}

	result, err := c.CreateOrUpdateFunction(context.Background(), "deployed-lambda-abcd1234", "irrelevant", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, arn, result.FunctionArn)
}

func TestRoleAndFunctionNameDerivation(t *testing.T) {
	require.Equal(t, "sdlc-exec-abcd1234", RoleName("deploy-xxxxxxxxxxxxxxxxxxxxxxxxxxxabcd1234"))
	require.Equal(t, "deployed-lambda-abcd1234", FunctionName("deploy-xxxxxxxxxxxxxxxxxxxxxxxxxxxabcd1234"))
}
