// Package aiclient is the shared AI adapter (spec.md §2 "Shared
// infrastructure"): endpoint discovery, test synthesis, and fix
// planning/rewriting, all going through one JSON-extracting, single-retry,
// circuit-broken call path.
package aiclient

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

// Messages is the subset of the anthropic SDK the adapter depends on, so
// tests can substitute a fake model.
type Messages interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// Client wraps the Anthropic SDK with the adapter's JSON-reply contract
// (spec.md §9 "Dynamic JSON from the language model"): extract the first
// top-level JSON object, validate shape, retry once on mismatch.
type Client struct {
	messages Messages
	model    string
	maxTokens int64
	breaker  *gobreaker.CircuitBreaker
}

func New(apiKey, model string) *Client {
	sdk := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClient(&sdk.Messages, model)
}

func newClient(messages Messages, model string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "ai-adapter",
	})
	return &Client{messages: messages, model: model, maxTokens: 4096, breaker: breaker}
}

// complete sends prompt as a single user turn and returns the model's text
// reply, behind the circuit breaker.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "ai adapter call failed")
		}
		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})
	if err != nil {
		if sErr, ok := sdlcerr.As(err); ok {
			return "", sErr
		}
		return "", sdlcerr.Wrap(sdlcerr.KindTransient, err, "ai adapter unavailable")
	}
	return result.(string), nil
}

// askForJSON sends prompt, extracts the first top-level JSON object from the
// reply, and unmarshals it into out. On a missing object or a decode
// failure, it retries once with the identical prompt before surfacing
// sdlcerr.KindAIResponseShape (spec.md §9: "do not attempt recovery beyond
// one retry").
func (c *Client) askForJSON(ctx context.Context, prompt string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := c.complete(ctx, prompt)
		if err != nil {
			return err
		}
		object, found := ExtractJSONObject(reply)
		if !found {
			lastErr = sdlcerr.New(sdlcerr.KindAIResponseShape, "model reply contained no top-level JSON object")
			continue
		}
		if err := unmarshalStrict(object, out); err != nil {
			lastErr = sdlcerr.Wrap(sdlcerr.KindAIResponseShape, err, "model reply did not match expected shape")
			continue
		}
		return nil
	}
	return lastErr
}
