package cloudclient

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfnTypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/require"
)

type fakeCFN struct {
	stacks map[string]*cfnTypes.Stack
	events map[string][]cfnTypes.StackEvent
	creates int
	updates int
}

func (f *fakeCFN) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	stack, ok := f.stacks[*in.StackName]
	if !ok {
		return nil, notFoundErr{code: "ValidationError"}
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cfnTypes.Stack{*stack}}, nil
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.creates++
	status := cfnTypes.StackStatusCreateComplete
	f.stacks[*in.StackName] = &cfnTypes.Stack{StackName: in.StackName, StackStatus: status}
	return &cloudformation.CreateStackOutput{}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.updates++
	status := cfnTypes.StackStatusUpdateComplete
	f.stacks[*in.StackName].StackStatus = status
	return &cloudformation.UpdateStackOutput{}, nil
}

func (f *fakeCFN) DescribeStackEvents(_ context.Context, in *cloudformation.DescribeStackEventsInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	return &cloudformation.DescribeStackEventsOutput{StackEvents: f.events[*in.StackName]}, nil
}

func TestSubmitStackCreatesWhenMissing(t *testing.T) {
	fake := &fakeCFN{stacks: map[string]*cfnTypes.Stack{}}
	c := &Client{CFN: fake}

	err := c.SubmitStack(context.Background(), "sam-deploy-abcd1234", "sam-abcd1234", "Resources: {}")
	require.NoError(t, err)
	require.Equal(t, 1, fake.creates)
	require.Equal(t, 0, fake.updates)
}

func TestSubmitStackUpdatesWhenPresent(t *testing.T) {
	status := cfnTypes.StackStatusCreateComplete
	fake := &fakeCFN{stacks: map[string]*cfnTypes.Stack{
		"sam-deploy-abcd1234": {StackName: strPtr("sam-deploy-abcd1234"), StackStatus: status},
	}}
	c := &Client{CFN: fake}

	err := c.SubmitStack(context.Background(), "sam-deploy-abcd1234", "sam-abcd1234", "Resources: {}")
	require.NoError(t, err)
	require.Equal(t, 0, fake.creates)
	require.Equal(t, 1, fake.updates)
}

func TestPollStackSucceeds(t *testing.T) {
	status := cfnTypes.StackStatusCreateComplete
	fake := &fakeCFN{stacks: map[string]*cfnTypes.Stack{
		"s": {StackName: strPtr("s"), StackStatus: status, Outputs: []cfnTypes.Output{
			{OutputKey: strPtr("ApiUrl"), OutputValue: strPtr("https://api.example/")},
		}},
	}}
	c := &Client{CFN: fake}

	result, err := c.PollStack(context.Background(), "s")
	require.NoError(t, err)
	require.Equal(t, StackSucceeded, result.Status)
	require.Equal(t, "https://api.example/", result.Outputs["ApiUrl"])
}

func TestPollStackFailsAndCollectsEvents(t *testing.T) {
	status := cfnTypes.StackStatusRollbackComplete
	fake := &fakeCFN{
		stacks: map[string]*cfnTypes.Stack{"s": {StackName: strPtr("s"), StackStatus: status}},
		events: map[string][]cfnTypes.StackEvent{
			"s": {
				{LogicalResourceId: strPtr("Func"), ResourceStatus: cfnTypes.ResourceStatusCreateFailed, ResourceStatusReason: strPtr("bad role")},
			},
		},
	}
	c := &Client{CFN: fake}

	result, err := c.PollStack(context.Background(), "s")
	require.NoError(t, err)
	require.Equal(t, StackFailed, result.Status)
	require.Len(t, result.RecentEvents, 1)
	require.Contains(t, result.RecentEvents[0], "bad role")
}

func TestWaitForTerminalReturnsOnSuccess(t *testing.T) {
	status := cfnTypes.StackStatusCreateComplete
	fake := &fakeCFN{stacks: map[string]*cfnTypes.Stack{"s": {StackName: strPtr("s"), StackStatus: status}}}
	c := &Client{CFN: fake}

	result, err := c.WaitForTerminal(context.Background(), "s", time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Equal(t, StackSucceeded, result.Status)
}
