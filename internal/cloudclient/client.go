// Package cloudclient is the shared cloud adapter (spec.md §2 "Shared
// infrastructure"): Lambda-native provisioning for simple-lambda deployments
// and CloudFormation/SAM stack submission for template-based ones.
package cloudclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// IAMAPI is the subset of *iam.Client the adapter needs.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// LambdaAPI is the subset of *lambda.Client the adapter needs.
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
}

// CloudFormationAPI is the subset of *cloudformation.Client the adapter
// needs.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// Client composes the three AWS service clients the Deployment Worker
// drives. Construct with real *iam.Client/*lambda.Client/*cloudformation.Client
// in production; tests substitute fakes implementing the narrower
// interfaces above.
type Client struct {
	IAM   IAMAPI
	Lambda LambdaAPI
	CFN   CloudFormationAPI
}

func New(iamClient IAMAPI, lambdaClient LambdaAPI, cfnClient CloudFormationAPI) *Client {
	return &Client{IAM: iamClient, Lambda: lambdaClient, CFN: cfnClient}
}
