package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/config"
	"github.com/noah-isme/suitec-go-api/internal/database"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
	"github.com/noah-isme/suitec-go-api/internal/scheduler"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
	cloud "github.com/noah-isme/suitec-go-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("process", "poller").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidatePoller(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+" poller")
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, digests and points events will not be published")
		} else {
			defer natsConn.Close()
		}
	}

	lms, err := canvas.NewClient(canvas.Config{
		APIToken: cfg.CanvasAPIToken,
		Protocol: cfg.CanvasProtocol,
		Timeout:  cfg.CanvasTimeout,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create canvas client")
	}

	var storage service.FileStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cloudinary unavailable, file submissions keep their canvas urls")
	} else {
		storage = uploader
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	catalog := service.DefaultActivityCatalog()

	activityRepo := repository.NewActivityRepository(db)
	activityTypeRepo := repository.NewActivityTypeRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)

	broadcaster := service.NewPointsBroadcaster(natsConn, cfg.RealtimeChannel, logger)
	registry := service.NewActivityTypeService(activityTypeRepo, catalog, validate, logger)
	points := service.NewPointsService(userRepo, activityRepo, broadcaster, logger)
	ledger := service.NewActivityService(activityRepo, userRepo, courseRepo, registry, points, catalog, logger)
	scores := service.NewScoreService(activityRepo, assetRepo, courseRepo, registry, catalog, validate, cfg.TrendingWindow, logger)
	assets := service.NewAssetService(assetRepo, storage, lms, cfg.AssetMaxSizeMB, logger)

	poller := service.NewPollerService(service.PollerDependencies{
		LMS:        lms,
		Courses:    courseRepo,
		Users:      userRepo,
		Categories: categoryRepo,
		Ledger:     ledger,
		Registry:   registry,
		Assets:     assets,
		Pacer:      service.NewPacer(cfg.PollerCourseInterval),
	}, cfg.PollerInactivityDays, logger)

	var publisher service.Publisher
	if natsConn != nil {
		publisher = natsConn
	}
	digests := service.NewDigestService(courseRepo, userRepo, activityRepo, publisher, cfg.RealtimeChannel, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := []scheduler.Job{
		{Name: "poll", Spec: cfg.PollerSchedule, Run: func(ctx context.Context) error {
			summary, err := poller.PollAll(ctx)
			logger.Info().
				Int("courses", summary.Courses).
				Int("succeeded", summary.Succeeded).
				Int("failed", summary.Failed).
				Int("deactivated", summary.Deactivated).
				Msg("poll pass finished")
			return err
		}},
		{Name: "trending", Spec: cfg.TrendingSchedule, Run: func(ctx context.Context) error {
			return scores.RecalculateActiveCourses(ctx, service.ScoreKindTrending)
		}},
		{Name: "impact", Spec: cfg.ImpactSchedule, Run: func(ctx context.Context) error {
			return scores.RecalculateActiveCourses(ctx, service.ScoreKindImpact)
		}},
		{Name: "daily_digest", Spec: cfg.DailyDigestSchedule, Run: func(ctx context.Context) error {
			_, err := digests.Dispatch(ctx, repository.DigestDaily)
			return err
		}},
		{Name: "weekly_digest", Spec: cfg.WeeklyDigestSchedule, Run: func(ctx context.Context) error {
			_, err := digests.Dispatch(ctx, repository.DigestWeekly)
			return err
		}},
	}

	jobScheduler := scheduler.New(logger)
	for _, job := range jobs {
		if err := jobScheduler.Register(ctx, job); err != nil {
			logger.Fatal().Err(err).Str("job", job.Name).Msg("failed to schedule job")
		}
	}
	jobScheduler.Start()
	logger.Info().Int("jobs", len(jobs)).Msg("poller started")

	<-ctx.Done()
	<-jobScheduler.Stop().Done()
	logger.Info().Msg("poller stopped")
}
