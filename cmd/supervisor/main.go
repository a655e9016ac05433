// Session Supervisor
//
// The HTTP front door for the control plane: accepts /deploy, /sanity-test,
// /fix, and /sdlc-deploy requests, creates the session, and enqueues the
// corresponding job. Never touches a cloud provider or the model directly -
// that work happens in the workers this service merely dispatches to.
package main

import (
	"context"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appconfig "github.com/ambient-sdlc/control-plane/internal/config"
	"github.com/ambient-sdlc/control-plane/internal/featureflags"
	"github.com/ambient-sdlc/control-plane/internal/httpapi"
	"github.com/ambient-sdlc/control-plane/internal/observability"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

func main() {
	cfg := appconfig.Load()
	logger := observability.NewLogger("sdlc-supervisor")

	shutdown := observability.InitTracer(observability.LogAdapter{Logger: logger}, "sdlc-supervisor")
	defer shutdown()

	featureflags.Init()

	db, err := gorm.Open(sqlite.Open(cfg.SessionDBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session database")
	}
	store, err := session.Open(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate session database")
	}

	q, err := buildQueue(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build queue adapter")
	}

	srv := &httpapi.Server{Store: store, Queue: q}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := httpapi.NewRouter(srv, cfg, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info().Str("port", port).Str("queueBackend", cfg.QueueBackend).Msg("starting sdlc supervisor")
	if err := r.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

// buildQueue constructs the Queue adapter named by QUEUE_BACKEND, mirroring
// this same small block across every cmd/* entrypoint.
func buildQueue(ctx context.Context, cfg appconfig.Config) (queue.Queue, error) {
	if cfg.QueueBackend != "sqs" {
		return queue.New("memory", nil, nil), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.CloudRegion))
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg)
	urls := map[queue.Name]string{
		queue.Deploy: cfg.DeployQueueURL,
		queue.Verify: cfg.VerifyQueueURL,
		queue.Repair: cfg.RepairQueueURL,
		queue.SDLC:   cfg.SDLCQueueURL,
	}
	return queue.New("sqs", client, urls), nil
}
