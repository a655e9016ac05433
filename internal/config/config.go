// Package config reads the control plane's environment-variable
// configuration, following the teacher's public-api main.go's plain
// os.Getenv-with-defaults style rather than a config-framework dependency.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting named in spec.md §6, plus the additions in
// SPEC_FULL.md §6.
type Config struct {
	ArtifactsBucket   string
	CloudAccountID    string
	CloudRegion       string
	AIModelID         string
	DeployPollInterval time.Duration
	DeployTimeout      time.Duration
	SDLCWallClock      time.Duration
	SDLCMaxAttempts    int
	VerifyProbeTimeout time.Duration
	VerifyScanFileCap  int
	SessionDBDSN       string
	QueueBackend       string
	RateLimitRPS       float64
	RateLimitBurst     int
	// Queue URLs are only read when QueueBackend is "sqs"; the memory backend
	// ignores them entirely.
	DeployQueueURL string
	VerifyQueueURL string
	RepairQueueURL string
	SDLCQueueURL   string
}

// Load reads configuration from the environment, applying the defaults
// listed in spec.md §6 and SPEC_FULL.md §6.
func Load() Config {
	return Config{
		ArtifactsBucket:    getString("ARTIFACTS_BUCKET", "sdlc-artifacts"),
		CloudAccountID:     os.Getenv("CLOUD_ACCOUNT_ID"),
		CloudRegion:        getString("CLOUD_REGION", "us-east-1"),
		AIModelID:          getString("AI_MODEL_ID", "claude-opus-4-5@20251101"),
		DeployPollInterval: getDuration("DEPLOY_POLL_INTERVAL", 10*time.Second),
		DeployTimeout:      getDuration("DEPLOY_TIMEOUT", 60*time.Minute),
		SDLCWallClock:      getDuration("SDLC_WALL_CLOCK", 15*time.Minute),
		SDLCMaxAttempts:    getInt("SDLC_MAX_ATTEMPTS", 3),
		VerifyProbeTimeout: getDuration("VERIFY_PROBE_TIMEOUT", 30*time.Second),
		VerifyScanFileCap:  getInt("VERIFY_SCAN_FILE_CAP", 200),
		SessionDBDSN:       getString("SESSION_DB_DSN", "file:sdlc-sessions.db?cache=shared"),
		QueueBackend:       getString("QUEUE_BACKEND", "memory"),
		RateLimitRPS:       getFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 200),
		DeployQueueURL:     os.Getenv("DEPLOY_QUEUE_URL"),
		VerifyQueueURL:     os.Getenv("VERIFY_QUEUE_URL"),
		RepairQueueURL:     os.Getenv("REPAIR_QUEUE_URL"),
		SDLCQueueURL:       os.Getenv("SDLC_QUEUE_URL"),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
