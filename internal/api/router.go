package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/parcelbase/parcelbase/internal/api/v1"
	"github.com/parcelbase/parcelbase/internal/auth"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/rest/middleware"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/types"
)

type Handlers struct {
	Health      *v1.HealthHandler
	Package     *v1.PackageHandler
	Lookup      *v1.LookupHandler
	ScanSession *v1.ScanSessionHandler
	ScanStream  *v1.ScanStreamHandler
	Inventory   *v1.InventoryHandler
	User        *v1.UserHandler
	Tracking    *v1.TrackingHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	provider auth.Provider,
	users service.UserService,
) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware(cfg),
		middleware.SentryMiddleware(cfg),
		middleware.RequestLogger(logger),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// Public routes
	router.GET("/track/:code", handlers.Tracking.Track)

	// Private routes
	private := router.Group("/v1")
	private.Use(middleware.AuthenticateMiddleware(provider, users, logger))
	registerV1Routes(private, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	packages := router.Group("/packages")
	{
		packages.POST("", handlers.Package.CreatePackage)
		packages.GET("", handlers.Package.ListPackages)
		packages.GET("/code/:code", handlers.Package.GetPackageByShortCode)
		packages.GET("/:id", handlers.Package.GetPackage)
		packages.GET("/:id/history", handlers.Package.ListHistory)
		packages.GET("/:id/scans", handlers.Package.ListScans)
		packages.GET("/:id/label", handlers.Package.GetLabel)
		packages.POST("/:id/status", handlers.Package.ChangeStatus)
		packages.DELETE("/:id", middleware.RequireAdmin, handlers.Package.DeletePackage)
	}

	router.POST("/lookup", handlers.Lookup.Lookup)
	router.GET("/statuses", handlers.Lookup.ListStatuses)

	sessions := router.Group("/scan-sessions")
	{
		sessions.POST("", handlers.ScanSession.CreateSession)
		sessions.GET("/:id", handlers.ScanSession.GetSession)
		sessions.DELETE("/:id", handlers.ScanSession.CloseSession)
		sessions.GET("/:id/stream", handlers.ScanStream.Stream)
		sessions.POST("/:id/frames", handlers.ScanSession.PushFrame)
		sessions.POST("/:id/acknowledge", handlers.ScanSession.Acknowledge)
		sessions.POST("/:id/picker", handlers.ScanSession.OpenStatusPicker)
		sessions.POST("/:id/confirm", handlers.ScanSession.Confirm)
		sessions.POST("/:id/cancel", handlers.ScanSession.Cancel)

		camera := sessions.Group("/:id/camera")
		{
			camera.POST("/retry", handlers.ScanSession.RetryCamera)
			camera.POST("/torch", handlers.ScanSession.SetTorch)
			camera.POST("/error", handlers.ScanSession.ReportDeviceError)
		}
	}

	inventory := router.Group("/inventory")
	{
		inventory.GET("", handlers.Inventory.ListItems)
		inventory.GET("/:id", handlers.Inventory.GetItem)
		inventory.POST("", middleware.RequireAdmin, handlers.Inventory.CreateItem)
		inventory.POST("/:id/adjust", middleware.RequireAdmin, handlers.Inventory.Adjust)
	}

	users := router.Group("/users")
	{
		users.GET("/me", handlers.User.GetUserInfo)
		users.POST("", middleware.RequireAdmin, handlers.User.CreateUser)
	}
}
