// SDLC Coordinator
//
// Drives one sdlc session forward by exactly one state transition per
// invocation (spec.md §4.6), spawning deploy/verify/repair child sessions
// and re-enqueueing itself with a delay while waiting on one. Exits 1 only
// on an operational error; a coordinator step that leaves the sdlc session
// non-terminal is a normal, successful invocation.
package main

import (
	"context"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appconfig "github.com/ambient-sdlc/control-plane/internal/config"
	"github.com/ambient-sdlc/control-plane/internal/coordinator"
	"github.com/ambient-sdlc/control-plane/internal/observability"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

func main() {
	cfg := appconfig.Load()
	logger := observability.NewLogger("sdlc-coordinator")
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(cfg.SessionDBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session database")
	}
	store, err := session.Open(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate session database")
	}

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

	driver := coordinator.New(store, q, cfg.SDLCWallClock, cfg.SDLCMaxAttempts)

	ok, err := driver.RunOnce(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("coordinator step failed")
		os.Exit(1)
	}
	if !ok {
		logger.Info().Msg("no sdlc job ready")
	}
	os.Exit(0)
}
