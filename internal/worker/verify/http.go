package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ProbeResult is one step's HTTP outcome before pass/fail classification.
type ProbeResult struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Err        error
}

// Prober issues the HTTP requests a verify scenario's steps describe,
// per spec.md §4.4's "issue the HTTP request with a per-request timeout of
// 30s" rule.
type Prober struct {
	Client *http.Client
}

// NewProber builds a Prober with the given per-request timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{Client: &http.Client{Timeout: timeout}}
}

// Do resolves the absolute URL (endpoint verbatim if it already begins with
// "http", else baseURL+endpoint), issues the request, and always records
// duration even on transport error.
func (p *Prober) Do(ctx context.Context, baseURL, method, endpoint string, body interface{}, headers map[string]string) ProbeResult {
	url := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		url = baseURL + endpoint
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return ProbeResult{Duration: time.Since(start), Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.Client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return ProbeResult{Duration: duration, Err: err}
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return ProbeResult{StatusCode: resp.StatusCode, Body: buf.Bytes(), Duration: duration}
}
