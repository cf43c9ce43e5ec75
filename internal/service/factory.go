package service

import (
	"github.com/parcelbase/parcelbase/internal/audit"
	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache
	Sentry *sentry.Service

	// Repositories
	PackageRepo   parcel.Repository
	HistoryRepo   statushistory.Repository
	ScanRepo      scanlog.Repository
	InventoryRepo inventory.Repository
	UserRepo      user.Repository

	// Publishers
	EventPublisher publisher.EventPublisher
	AuditQueue     audit.Enqueuer
}

func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	sentry *sentry.Service,
	packageRepo parcel.Repository,
	historyRepo statushistory.Repository,
	scanRepo scanlog.Repository,
	inventoryRepo inventory.Repository,
	userRepo user.Repository,
	eventPublisher publisher.EventPublisher,
	auditQueue audit.Enqueuer,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Cache:          cache,
		Sentry:         sentry,
		PackageRepo:    packageRepo,
		HistoryRepo:    historyRepo,
		ScanRepo:       scanRepo,
		InventoryRepo:  inventoryRepo,
		UserRepo:       userRepo,
		EventPublisher: eventPublisher,
		AuditQueue:     auditQueue,
	}
}
