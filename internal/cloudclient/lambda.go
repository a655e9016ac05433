package cloudclient

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	smithy "github.com/aws/smithy-go"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

const (
	// lambdaTrustPolicy grants the Lambda service permission to assume the
	// execution role.
	lambdaTrustPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"lambda.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

	// basicExecutionPolicyARN is the AWS-managed minimal logging policy
	// spec.md §4.3 requires for a freshly-created execution role.
	basicExecutionPolicyARN = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

	// lambdaRuntime is fixed to the current host runtime, per spec.md §4.3.
	lambdaRuntime   = lambdaTypes.RuntimeNodejs20x
	lambdaMemoryMiB = int32(256)
	lambdaTimeoutS  = int32(30)

	rolePropagationWait = 10 * time.Second
)

// RoleName derives the execution role name from a session id prefix,
// per spec.md §4.3 ("derive role name from session-id prefix").
func RoleName(sessionID string) string {
	return "sdlc-exec-" + shortPrefix(sessionID)
}

// FunctionName derives the deployed function's name from a session id.
func FunctionName(sessionID string) string {
	return "deployed-lambda-" + shortPrefix(sessionID)
}

func shortPrefix(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[len(sessionID)-8:]
}

// EnsureExecutionRole returns the execution role's ARN, creating it (with
// the basic-execution policy attached) if it does not already exist, and
// waiting for IAM propagation on first creation.
func (c *Client) EnsureExecutionRole(ctx context.Context, roleName string) (string, error) {
	out, err := c.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: &roleName})
	if err == nil {
		return *out.Role.Arn, nil
	}
	if !isNotFound(err) {
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "iam GetRole failed")
	}

	created, err := c.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 &roleName,
		AssumeRolePolicyDocument: aws.String(lambdaTrustPolicy),
	})
	if err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "iam CreateRole failed")
	}

	policyARN := basicExecutionPolicyARN
	if _, err := c.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  &roleName,
		PolicyArn: &policyARN,
	}); err != nil {
		return "", sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "iam AttachRolePolicy failed")
	}

	select {
	case <-time.After(rolePropagationWait):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return *created.Role.Arn, nil
}

// LambdaResult is the deployed-resources payload for a simple-lambda
// deployment.
type LambdaResult struct {
	FunctionName string
	FunctionArn  string
	Runtime      string
}

// CreateOrUpdateFunction creates functionName if it does not exist, else
// updates its code, per spec.md §4.3's create-then-fallback-to-update idiom.
func (c *Client) CreateOrUpdateFunction(ctx context.Context, functionName, roleARN string, zipBytes []byte) (LambdaResult, error) {
	_, err := c.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &functionName})
	switch {
	case err == nil:
		out, err := c.Lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
			FunctionName: &functionName,
			ZipFile:      zipBytes,
		})
		if err != nil {
			return LambdaResult{}, sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "lambda UpdateFunctionCode failed")
		}
		return LambdaResult{FunctionName: functionName, FunctionArn: *out.FunctionArn, Runtime: string(out.Runtime)}, nil
	case isNotFound(err):
		out, err := c.Lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
			FunctionName: &functionName,
			Role:         &roleARN,
			Runtime:      lambdaRuntime,
			Handler:      aws.String("index.handler"),
			MemorySize:   aws.Int32(lambdaMemoryMiB),
			Timeout:      aws.Int32(lambdaTimeoutS),
			Code:         &lambdaTypes.FunctionCode{ZipFile: zipBytes},
		})
		if err != nil {
			return LambdaResult{}, sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "lambda CreateFunction failed")
		}
		return LambdaResult{FunctionName: functionName, FunctionArn: *out.FunctionArn, Runtime: string(out.Runtime)}, nil
	default:
		return LambdaResult{}, sdlcerr.Wrap(sdlcerr.KindTransient, err, "lambda GetFunction failed")
	}
}

// isNotFound reports whether err is the "does not exist" flavor of AWS API
// error shared by IAM's NoSuchEntityException and Lambda's
// ResourceNotFoundException.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchEntityException", "ResourceNotFoundException":
			return true
		}
	}
	return false
}
