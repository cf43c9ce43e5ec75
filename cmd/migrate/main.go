package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/parcelbase/parcelbase/internal/auth"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	postgresRepo "github.com/parcelbase/parcelbase/internal/repository/postgres"
	"github.com/parcelbase/parcelbase/internal/types"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	seedAdmin := flag.String("seed-admin", "", "Create an admin user with this id after migrating")
	adminName := flag.String("admin-name", "Administrator", "Display name of the seeded admin")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed local token for the seeded admin")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Backend.Type != types.BackendPostgres {
		logger.Fatalw("migrations only apply to the postgres backend", "backend", cfg.Backend.Type)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *dryRun {
		logger.Info("Dry run mode - listing pending migrations without applying them")
	}
	versions, err := db.Migrate(ctx, *dryRun)
	if err != nil {
		logger.Fatalw("Failed to migrate", "error", err)
	}
	logger.Infow("Migration completed", "versions", versions, "dry_run", *dryRun)

	if *seedAdmin == "" || *dryRun {
		return
	}

	admin := user.NewUser(ctx, *seedAdmin, *adminName, types.UserRoleAdmin)
	err = postgresRepo.NewUserRepository(db, logger).Create(ctx, admin)
	switch {
	case ierr.IsAlreadyExists(err):
		logger.Infow("admin already exists", "user_id", admin.ID)
	case err != nil:
		logger.Fatalw("Failed to seed admin", "error", err)
	default:
		logger.Infow("seeded admin", "user_id", admin.ID)
	}

	if cfg.Auth.Provider != types.AuthProviderLocal {
		return
	}
	token, err := auth.NewLocalAuth(cfg).GenerateToken(admin.ID, *tokenTTL)
	if err != nil {
		logger.Fatalw("Failed to generate token", "error", err)
	}
	fmt.Println(token)
}
