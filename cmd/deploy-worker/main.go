// Deployment Worker
//
// Processes at most one deploy job per invocation: clones the repository,
// classifies its infrastructure-as-code shape, packages and provisions it,
// and writes the terminal session event. Exits 0 on terminal-success or no
// job ready, 1 on terminal-failure or an operational error, so an external
// scheduler (ECS task, k8s Job, cron) can drive retries per spec.md §6.
package main

import (
	"context"
	"encoding/json"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ambient-sdlc/control-plane/internal/artifact"
	"github.com/ambient-sdlc/control-plane/internal/cloudclient"
	appconfig "github.com/ambient-sdlc/control-plane/internal/config"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/observability"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/session"
	deployworker "github.com/ambient-sdlc/control-plane/internal/worker/deploy"
)

func main() {
	cfg := appconfig.Load()
	logger := observability.NewLogger("sdlc-deploy-worker")
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.CloudRegion))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load aws config")
	}

	db, err := gorm.Open(sqlite.Open(cfg.SessionDBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session database")
	}
	store, err := session.Open(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate session database")
	}

	s3Client := s3.NewFromConfig(awsCfg)
	artifacts := artifact.New(cfg.ArtifactsBucket, manager.NewUploader(s3Client), s3Client)
	cloud := cloudclient.New(iam.NewFromConfig(awsCfg), lambda.NewFromConfig(awsCfg), cloudformation.NewFromConfig(awsCfg))
	worker := deployworker.New(store, artifacts, cloud, cfg.DeployPollInterval, cfg.DeployTimeout)

	var q queue.Queue
	if cfg.QueueBackend == "sqs" {
		q = queue.New("sqs", sqs.NewFromConfig(awsCfg), map[queue.Name]string{
			queue.Deploy: cfg.DeployQueueURL,
			queue.Verify: cfg.VerifyQueueURL,
			queue.Repair: cfg.RepairQueueURL,
			queue.SDLC:   cfg.SDLCQueueURL,
		})
	} else {
		q = queue.New("memory", nil, nil)
	}

	job, ok, err := q.Dequeue(ctx, queue.Deploy)
	if err != nil {
		logger.Error().Err(err).Msg("failed to dequeue deploy job")
		os.Exit(1)
	}
	if !ok {
		logger.Info().Msg("no deploy job ready")
		os.Exit(0)
	}

	var payload jobs.DeployJob
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		logger.Error().Err(err).Msg("malformed deploy job payload")
		os.Exit(1)
	}

	logger.Info().Str("sessionId", payload.SessionID).Msg("processing deploy job")
	if err := worker.Process(ctx, payload); err != nil {
		logger.Error().Err(err).Str("sessionId", payload.SessionID).Msg("deploy worker operational failure")
		os.Exit(1)
	}

	state, err := store.Project(ctx, payload.SessionID)
	if err != nil || state.Outcome == session.OutcomeFailed {
		os.Exit(1)
	}
	os.Exit(0)
}
