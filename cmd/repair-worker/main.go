// Repair Worker
//
// Processes at most one repair job per invocation: asks the model for a fix
// plan, rewrites the named files, and publishes a fix branch upstream. Exit
// codes mirror the Deployment Worker's convention (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ambient-sdlc/control-plane/internal/aiclient"
	appconfig "github.com/ambient-sdlc/control-plane/internal/config"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/observability"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	repairworker "github.com/ambient-sdlc/control-plane/internal/worker/repair"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

func main() {
	cfg := appconfig.Load()
	logger := observability.NewLogger("sdlc-repair-worker")
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(cfg.SessionDBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session database")
	}
	store, err := session.Open(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate session database")
	}

	ai := aiclient.New(os.Getenv("ANTHROPIC_API_KEY"), cfg.AIModelID)
	worker := repairworker.New(store, ai)

	var q queue.Queue
	if cfg.QueueBackend == "sqs" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.CloudRegion))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load aws config")
		}
		q = queue.New("sqs", sqs.NewFromConfig(awsCfg), map[queue.Name]string{
			queue.Deploy: cfg.DeployQueueURL,
			queue.Verify: cfg.VerifyQueueURL,
			queue.Repair: cfg.RepairQueueURL,
			queue.SDLC:   cfg.SDLCQueueURL,
		})
	} else {
		q = queue.New("memory", nil, nil)
	}

	job, ok, err := q.Dequeue(ctx, queue.Repair)
	if err != nil {
		logger.Error().Err(err).Msg("failed to dequeue repair job")
		os.Exit(1)
	}
	if !ok {
		logger.Info().Msg("no repair job ready")
		os.Exit(0)
	}

	var payload jobs.RepairJob
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		logger.Error().Err(err).Msg("malformed repair job payload")
		os.Exit(1)
	}

	logger.Info().Str("sessionId", payload.SessionID).Msg("processing repair job")
	if err := worker.Process(ctx, payload); err != nil {
		logger.Error().Err(err).Str("sessionId", payload.SessionID).Msg("repair worker operational failure")
		os.Exit(1)
	}

	state, err := store.Project(ctx, payload.SessionID)
	if err != nil || state.Outcome == session.OutcomeFailed {
		os.Exit(1)
	}
	os.Exit(0)
}
