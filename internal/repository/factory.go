package repository

import (
	"github.com/nedpals/supabase-go"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	postgresRepo "github.com/parcelbase/parcelbase/internal/repository/postgres"
	supabaseRepo "github.com/parcelbase/parcelbase/internal/repository/supabase"
	"github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
	"go.uber.org/fx"
)

// RepositoryParams carries both backends; only the configured one is set.
type RepositoryParams struct {
	fx.In

	Config   *config.Configuration
	Logger   *logger.Logger
	DB       *postgres.DB     `optional:"true"`
	Supabase *supabase.Client `optional:"true"`
}

func (p RepositoryParams) useSupabase() bool {
	return p.Config.Backend.Type == types.BackendSupabase
}

func NewPackageRepository(p RepositoryParams) parcel.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewPackageRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewPackageRepository(p.DB, p.Logger)
}

func NewStatusHistoryRepository(p RepositoryParams) statushistory.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewStatusHistoryRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewStatusHistoryRepository(p.DB, p.Logger)
}

func NewScanRepository(p RepositoryParams) scanlog.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewScanRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewScanRepository(p.DB, p.Logger)
}

func NewInventoryRepository(p RepositoryParams) inventory.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewInventoryRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewInventoryRepository(p.DB, p.Logger)
}

func NewUserRepository(p RepositoryParams) user.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewUserRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewUserRepository(p.DB, p.Logger)
}

// NewTxClient returns the transaction boundary for the configured backend.
// The hosted backend has no client-side transactions.
func NewTxClient(p RepositoryParams, sentry *sentry.Service) postgres.IClient {
	if p.useSupabase() || p.DB == nil {
		return postgres.PassthroughClient{}
	}
	return postgres.NewSentryClient(p.DB, sentry, p.Logger)
}

// Module provides every repository for the configured backend
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewDBForBackend,
			supabaseRepo.NewClient,
			NewTxClient,
			NewPackageRepository,
			NewStatusHistoryRepository,
			NewScanRepository,
			NewInventoryRepository,
			NewUserRepository,
		),
	)
}
