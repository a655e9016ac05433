package cloudclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cfnTypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	smithy "github.com/aws/smithy-go"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

// StackName derives the CloudFormation/SAM stack name from the IaC
// framework tag and a session id, per spec.md §4.3:
// "<framework>-deploy-<session-id-prefix>".
func StackName(framework, sessionID string) string {
	return fmt.Sprintf("%s-deploy-%s", framework, shortPrefix(sessionID))
}

// SubmitStack creates stackName if it does not already exist, else updates
// it, tagging it with sessionID and enabling IAM-creating capabilities.
func (c *Client) SubmitStack(ctx context.Context, stackName, sessionID, templateBody string) error {
	exists, err := c.stackExists(ctx, stackName)
	if err != nil {
		return err
	}

	capabilities := []cfnTypes.Capability{
		cfnTypes.CapabilityCapabilityIam,
		cfnTypes.CapabilityCapabilityNamedIam,
	}
	tags := []cfnTypes.Tag{{Key: strPtr("session-id"), Value: &sessionID}}

	if !exists {
		_, err := c.CFN.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    &stackName,
			TemplateBody: &templateBody,
			Capabilities: capabilities,
			Tags:         tags,
		})
		if err != nil {
			return sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "cloudformation CreateStack failed")
		}
		return nil
	}

	_, err = c.CFN.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    &stackName,
		TemplateBody: &templateBody,
		Capabilities: capabilities,
		Tags:         tags,
	})
	if err != nil {
		return sdlcerr.Wrap(sdlcerr.KindProvisioning, err, "cloudformation UpdateStack failed")
	}
	return nil
}

func (c *Client) stackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := c.CFN.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: &stackName})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
		return false, nil
	}
	return false, sdlcerr.Wrap(sdlcerr.KindTransient, err, "cloudformation DescribeStacks failed")
}

// StackStatus is the terminal classification of one poll of a stack.
type StackStatus int

const (
	StackInProgress StackStatus = iota
	StackSucceeded
	StackFailed
)

// PollResult is one poll cycle's outcome.
type PollResult struct {
	Status       StackStatus
	Outputs      map[string]string
	RecentEvents []string
}

// PollStack performs a single poll of stackName's status, classifying it
// per spec.md §4.3's terminal-success/terminal-failure status lists. On
// failure, it collects the five most recent failing resource events.
func (c *Client) PollStack(ctx context.Context, stackName string) (PollResult, error) {
	out, err := c.CFN.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: &stackName})
	if err != nil {
		return PollResult{}, sdlcerr.Wrap(sdlcerr.KindTransient, err, "cloudformation DescribeStacks failed")
	}
	if len(out.Stacks) == 0 {
		return PollResult{}, sdlcerr.New(sdlcerr.KindProvisioning, "stack disappeared mid-poll")
	}
	status := string(out.Stacks[0].StackStatus)

	switch {
	case status == string(cfnTypes.StackStatusCreateComplete) || status == string(cfnTypes.StackStatusUpdateComplete):
		outputs := make(map[string]string, len(out.Stacks[0].Outputs))
		for _, o := range out.Stacks[0].Outputs {
			if o.OutputKey != nil && o.OutputValue != nil {
				outputs[*o.OutputKey] = *o.OutputValue
			}
		}
		return PollResult{Status: StackSucceeded, Outputs: outputs}, nil

	case strings.Contains(status, "FAILED") || strings.Contains(status, "ROLLBACK"):
		events, eventsErr := c.recentFailingEvents(ctx, stackName, 5)
		if eventsErr != nil {
			events = []string{fmt.Sprintf("(could not fetch stack events: %v)", eventsErr)}
		}
		return PollResult{Status: StackFailed, RecentEvents: events}, nil

	default:
		return PollResult{Status: StackInProgress}, nil
	}
}

func (c *Client) recentFailingEvents(ctx context.Context, stackName string, limit int) ([]string, error) {
	out, err := c.CFN.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{StackName: &stackName})
	if err != nil {
		return nil, err
	}
	var events []string
	for _, e := range out.StackEvents {
		status := string(e.ResourceStatus)
		if !strings.Contains(status, "FAILED") {
			continue
		}
		reason := ""
		if e.ResourceStatusReason != nil {
			reason = *e.ResourceStatusReason
		}
		events = append(events, fmt.Sprintf("%s %s: %s", deref(e.LogicalResourceId), status, reason))
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }

// WaitForTerminal polls stackName every interval until it reaches a
// terminal status or deadline elapses, per spec.md §4.3's 10s poll / 60min
// budget. It does not sleep past ctx cancellation.
func (c *Client) WaitForTerminal(ctx context.Context, stackName string, interval, timeout time.Duration) (PollResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		result, err := c.PollStack(ctx, stackName)
		if err != nil {
			return PollResult{}, err
		}
		if result.Status != StackInProgress {
			return result, nil
		}
		if time.Now().After(deadline) {
			return PollResult{}, sdlcerr.New(sdlcerr.KindProvisioning, "provisioning poll timed out")
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		}
	}
}
