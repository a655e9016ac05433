package aiclient

import (
	"context"
	"fmt"
	"strings"
)

// Discover asks the model for the API surface of a cloned repository's
// source tree, given the bounded file listing the Verification Worker's
// scan phase produced.
func (c *Client) Discover(ctx context.Context, files []string) (DiscoveredAPI, error) {
	prompt := fmt.Sprintf(
		"You are analyzing a deployed backend's source tree to discover its HTTP API surface.\n"+
			"Source files:\n%s\n\n"+
			"Reply with a single JSON object of shape "+
			`{"endpoints":[{"method":"","path":"","description":"","requestSchema":"","responseSchema":"","authentication":""}],"baseUrl":"","authentication":""}`+
			". Reply with only that JSON object.",
		strings.Join(files, "\n"))

	var out DiscoveredAPI
	if err := c.askForJSON(ctx, prompt, &out); err != nil {
		return DiscoveredAPI{}, err
	}
	return out, nil
}

// GenerateTests asks the model for an ordered happy-path test suite over the
// discovered API surface.
func (c *Client) GenerateTests(ctx context.Context, discovered DiscoveredAPI) (TestSuite, error) {
	var endpoints strings.Builder
	for _, e := range discovered.Endpoints {
		fmt.Fprintf(&endpoints, "%s %s - %s\n", e.Method, e.Path, e.Description)
	}

	prompt := fmt.Sprintf(
		"Generate an ordered happy-path HTTP test suite for this API. Order scenarios so "+
			"creation happens before lookup-by-id and authentication happens before protected access.\n"+
			"Base URL: %s\nEndpoints:\n%s\n\n"+
			"Reply with a single JSON object of shape "+
			`{"tests":[{"name":"","description":"","steps":[{"action":"","endpoint":"","method":"","body":{},"headers":{},"expectedStatus":0,"expectedResponse":{},"storeVariables":{}}]}]}`+
			". Reply with only that JSON object.",
		discovered.BaseURL, endpoints.String())

	var out TestSuite
	if err := c.askForJSON(ctx, prompt, &out); err != nil {
		return TestSuite{}, err
	}
	return out, nil
}

// Plan asks the model for a structured fix plan given free-text instructions,
// a repo-relative file listing, and optional stack context.
func (c *Client) Plan(ctx context.Context, instructions string, fileList []string, stackInfo map[string]string) (FixPlan, error) {
	prompt := fmt.Sprintf(
		"Fix instructions:\n%s\n\nRepository files:\n%s\n\nStack info: %v\n\n"+
			"Reply with a single JSON object of shape "+
			`{"summary":"","steps":[""],"filesToModify":[""]}`+
			". Paths must be repo-relative. Reply with only that JSON object.",
		instructions, strings.Join(fileList, "\n"), stackInfo)

	var out FixPlan
	if err := c.askForJSON(ctx, prompt, &out); err != nil {
		return FixPlan{}, err
	}
	return out, nil
}

// Rewrite asks the model for new contents of every file named in plan's
// FilesToModify, given their current content (empty string for files that
// did not exist).
func (c *Client) Rewrite(ctx context.Context, plan FixPlan, currentContent map[string]string) (RewriteResult, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "Plan summary: %s\n", plan.Summary)
	for _, step := range plan.Steps {
		fmt.Fprintf(&body, "- %s\n", step)
	}
	for _, path := range plan.FilesToModify {
		fmt.Fprintf(&body, "\n=== %s ===\n%s\n", path, currentContent[path])
	}

	prompt := fmt.Sprintf(
		"Rewrite the following files to satisfy the plan below.\n%s\n\n"+
			"Reply with a single JSON object of shape "+
			`{"files":{"<path>":"<new content>"}}`+
			". Reply with only that JSON object.",
		body.String())

	var out RewriteResult
	if err := c.askForJSON(ctx, prompt, &out); err != nil {
		return RewriteResult{}, err
	}
	return out, nil
}
