// Package observability provides the structured logger and tracer every
// cmd/ binary shares, adapted from the teacher's public-api/observability.
package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service-scoped JSON logger (pretty-printed in
// GIN_MODE=debug), mirroring the teacher's init() in observability/logging.go
// but parameterized by service name so every binary gets its own "service"
// field instead of a hardcoded "public-api".
func NewLogger(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if os.Getenv("GIN_MODE") == "debug" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Caller().
			Str("service", service).
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// RedactSensitiveParams removes token/api_key/secret query parameters before
// a URL or job payload reaches the log, following the teacher's
// redactSensitiveParams in observability/logging.go and handlers/middleware.go.
func RedactSensitiveParams(query string) string {
	if query == "" {
		return ""
	}
	sensitive := []string{"token", "access_token", "api_key", "apikey", "key", "secret"}
	result := query
	for _, param := range sensitive {
		result = redactQueryParam(result, param)
	}
	return result
}

func redactQueryParam(query, param string) string {
	prefix := param + "="
	idx := 0
	for {
		start := strings.Index(query[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx
		valueStart := start + len(prefix)
		valueEnd := strings.Index(query[valueStart:], "&")
		if valueEnd == -1 {
			valueEnd = len(query) - valueStart
		}
		query = query[:valueStart] + "[REDACTED]" + query[valueStart+valueEnd:]
		idx = valueStart + len("[REDACTED]")
	}
	return query
}
