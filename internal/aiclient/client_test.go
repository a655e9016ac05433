package aiclient

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	replies []string
	calls   int
}

func (f *fakeMessages) New(_ context.Context, _ anthropic.MessageNewParams) (*anthropic.Message, error) {
	reply := f.replies[f.calls]
	if f.calls < len(f.replies)-1 {
		f.calls++
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: reply}},
	}, nil
}

func TestAskForJSONSucceedsFirstTry(t *testing.T) {
	fake := &fakeMessages{replies: []string{`noise {"summary":"ok","steps":["a"],"filesToModify":["x.go"]}`}}
	c := newClient(fake, "claude-opus-4-5@20251101")

	var plan FixPlan
	err := c.askForJSON(context.Background(), "prompt", &plan)
	require.NoError(t, err)
	require.Equal(t, "ok", plan.Summary)
	require.Equal(t, []string{"x.go"}, plan.FilesToModify)
}

func TestAskForJSONRetriesOnceOnMissingObject(t *testing.T) {
	fake := &fakeMessages{replies: []string{"no json here", `{"summary":"ok","steps":[],"filesToModify":[]}`}}
	c := newClient(fake, "claude-opus-4-5@20251101")

	var plan FixPlan
	err := c.askForJSON(context.Background(), "prompt", &plan)
	require.NoError(t, err)
	require.Equal(t, 2, fake.calls+1)
}

func TestAskForJSONFailsAfterSingleRetry(t *testing.T) {
	fake := &fakeMessages{replies: []string{"no json", "still no json"}}
	c := newClient(fake, "claude-opus-4-5@20251101")

	var plan FixPlan
	err := c.askForJSON(context.Background(), "prompt", &plan)
	require.Error(t, err)
}
