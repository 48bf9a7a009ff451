package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/suitec-go-api/internal/config"
	"github.com/noah-isme/suitec-go-api/internal/database"
	"github.com/noah-isme/suitec-go-api/internal/handler"
	"github.com/noah-isme/suitec-go-api/internal/middleware"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
	"github.com/noah-isme/suitec-go-api/internal/router"
	"github.com/noah-isme/suitec-go-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("process", "api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, leaderboard cache disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+" api")
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, points stream is node-local")
		} else {
			defer natsConn.Close()
		}
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	catalog := service.DefaultActivityCatalog()

	activityRepo := repository.NewActivityRepository(db)
	activityTypeRepo := repository.NewActivityTypeRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	userRepo := repository.NewUserRepository(db)

	broadcaster := service.NewPointsBroadcaster(natsConn, cfg.RealtimeChannel, logger)
	registry := service.NewActivityTypeService(activityTypeRepo, catalog, validate, logger)
	points := service.NewPointsService(userRepo, activityRepo, broadcaster, logger)
	ledger := service.NewActivityService(activityRepo, userRepo, courseRepo, registry, points, catalog, logger)
	scores := service.NewScoreService(activityRepo, assetRepo, courseRepo, registry, catalog, validate, cfg.TrendingWindow, logger)
	interactions := service.NewInteractionService(assetRepo, interactionRepo, ledger, scores, logger)
	comments := service.NewCommentService(commentRepo, assetRepo, ledger, scores, validate, logger)
	engagement := service.NewEngagementService(
		activityRepo,
		userRepo,
		registry,
		service.NewMetadataScrubber(cfg.MetadataBlacklist),
		redisClient,
		cfg.LeaderboardCacheTTL,
		logger,
	)
	registry.AddListener(engagement)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ActivityTypeHandler: handler.NewActivityTypeHandler(registry, logger),
		EngagementHandler:   handler.NewEngagementHandler(engagement, broadcaster, logger),
		InteractionHandler:  handler.NewInteractionHandler(interactions, comments, validate, logger),
		AdminHandler:        handler.NewAdminHandler(scores, points, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		RateLimit:           cfg.RateLimitPerSecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	broadcaster.Start(groupCtx)

	group.Go(func() error {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		return app.Listen(cfg.HTTPAddress())
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}
