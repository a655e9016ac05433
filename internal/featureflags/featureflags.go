// Package featureflags provides optional Unleash-backed feature flag checks
// for the control plane. When UNLEASH_URL and UNLEASH_CLIENT_KEY are not
// set, every flag is disabled (IsEnabled returns false).
package featureflags

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/Unleash/unleash-go-sdk/v5"
)

const appName = "ambient-sdlc-control-plane"

// Gate names for the two behavior toggles SPEC_FULL.md §6.7 adds.
const (
	IncludeSkippedInSummary = "verify.includeSkippedInSummary"
	ListTerminalOnly        = "deployments.listTerminalOnly"
)

var initialized bool

// Init initializes the Unleash client when UNLEASH_URL and UNLEASH_CLIENT_KEY
// are set. Safe to call multiple times; only initializes once when config is
// present. Call from main after loading env and before starting the server.
func Init() {
	url := strings.TrimSpace(os.Getenv("UNLEASH_URL"))
	clientKey := strings.TrimSpace(os.Getenv("UNLEASH_CLIENT_KEY"))
	if url == "" || clientKey == "" {
		return
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	unleash.Initialize(
		unleash.WithAppName(appName),
		unleash.WithUrl(url),
		unleash.WithCustomHeaders(http.Header{"Authorization": {clientKey}}),
	)
	initialized = true
	log.Printf("Unleash feature flags enabled (url=%s)", strings.TrimSuffix(url, "/"))
}

// IsEnabled returns true if the named feature flag is enabled. When Unleash
// is not configured, returns false.
func IsEnabled(flagName string) bool {
	if !initialized {
		return false
	}
	return unleash.IsEnabled(flagName)
}
