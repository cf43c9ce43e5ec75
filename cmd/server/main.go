package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/api"
	v1 "github.com/parcelbase/parcelbase/internal/api/v1"
	"github.com/parcelbase/parcelbase/internal/audit"
	"github.com/parcelbase/parcelbase/internal/auth"
	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/email"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	"github.com/parcelbase/parcelbase/internal/pubsub/kafka"
	"github.com/parcelbase/parcelbase/internal/pubsub/memory"
	"github.com/parcelbase/parcelbase/internal/pyroscope"
	pubsubRouter "github.com/parcelbase/parcelbase/internal/pubsub/router"
	"github.com/parcelbase/parcelbase/internal/repository"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
	"github.com/parcelbase/parcelbase/internal/webhook"
	"go.uber.org/fx"
)

// @title Parcelbase API
// @version 1.0
// @description Package tracking, scanning and status API
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,
			sentry.NewSentryService,
			cache.NewInMemoryCache,

			// Messaging
			providePubSub,
			pubsubRouter.NewRouter,
			publisher.NewEventPublisher,
			audit.NewRetryPublisher,
			audit.NewConsumer,

			auth.NewProvider,

			// Notifications
			email.NewClient,
			email.NewAlertService,
		),
		repository.Module(),
		webhook.Module,
		pyroscope.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewUserService,
			service.NewLookupService,
			service.NewStatusService,
			service.NewPackageService,
			service.NewInventoryService,
			service.NewTrackingService,

			// Scanning
			service.NewScanBackend,
			scanner.NewCameraRegistry,
			scanner.NewManager,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	if cfg.Events.PubSub == types.KafkaPubSub {
		return kafka.NewPubSub(cfg, log)
	}
	return memory.NewPubSub(cfg, log), nil
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	sessions *scanner.Manager,
	packageService service.PackageService,
	lookupService service.LookupService,
	inventoryService service.InventoryService,
	userService service.UserService,
	trackingService service.TrackingService,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(sessions, logger),
		Package:     v1.NewPackageHandler(packageService, logger),
		Lookup:      v1.NewLookupHandler(cfg, lookupService, logger),
		ScanSession: v1.NewScanSessionHandler(sessions, logger),
		ScanStream:  v1.NewScanStreamHandler(cfg, sessions, logger),
		Inventory:   v1.NewInventoryHandler(inventoryService, logger),
		User:        v1.NewUserHandler(userService, logger),
		Tracking:    v1.NewTrackingHandler(trackingService, logger),
	}
}

// serverParams carries the optional postgres handle, nil on the hosted backend
type serverParams struct {
	fx.In

	Lifecycle      fx.Lifecycle
	Config         *config.Configuration
	Engine         *gin.Engine
	Router         *pubsubRouter.Router
	PubSub         pubsub.PubSub
	AuditConsumer  *audit.Consumer
	WebhookService *webhook.WebhookService
	Alerts         *email.AlertService
	Sessions       *scanner.Manager
	DB             *postgres.DB `optional:"true"`
	Logger         *logger.Logger
}

func startServer(p serverParams) {
	if p.DB != nil {
		startDatabase(p.Lifecycle, p.DB, p.Config, p.Logger)
	}
	startMessageRouter(p.Lifecycle, p.Router, p.PubSub, p.AuditConsumer, p.WebhookService, p.Alerts, p.Logger)
	startAPIServer(p.Lifecycle, p.Engine, p.Sessions, p.Config, p.Logger)
}

func startDatabase(lc fx.Lifecycle, db *postgres.DB, cfg *config.Configuration, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Postgres.AutoMigrate {
				return nil
			}
			applied, err := db.Migrate(ctx, false)
			if err != nil {
				return err
			}
			log.Infow("database migrated", "applied", applied)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("closing database")
			return db.Close()
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	sessions *scanner.Manager,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			// release every camera before the connections go away
			sessions.CloseAll()

			if cfg.Server.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	ps pubsub.PubSub,
	auditConsumer *audit.Consumer,
	webhookService *webhook.WebhookService,
	alerts *email.AlertService,
	logger *logger.Logger,
) {
	// Register handlers before starting the router
	auditConsumer.RegisterHandler(router)
	webhookService.RegisterHandler(router)
	alerts.RegisterHandler(router)

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting message router")
			go func() {
				if err := router.Run(runCtx); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			cancel()
			if err := router.Close(); err != nil {
				logger.Errorw("failed to close message router", "error", err)
			}
			return ps.Close()
		},
	})
}
