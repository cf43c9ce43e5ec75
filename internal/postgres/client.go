package postgres

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
)

// IClient is the transaction boundary services depend on. Backends without
// transactions run fn directly.
type IClient interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

var _ IClient = (*DB)(nil)

// NewDBForBackend opens a connection only when the postgres backend is
// selected and returns nil otherwise.
func NewDBForBackend(cfg *config.Configuration, logger *logger.Logger) (*DB, error) {
	if cfg.Backend.Type != types.BackendPostgres {
		return nil, nil
	}
	return NewDB(cfg, logger)
}

// PassthroughClient runs fn without a transaction
type PassthroughClient struct{}

func (PassthroughClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
