package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/analytics"
	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/config"
	"github.com/nebari-dev/tenancy/internal/crypto"
	"github.com/nebari-dev/tenancy/internal/datasource"
	"github.com/nebari-dev/tenancy/internal/db"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/rbac"
	"github.com/nebari-dev/tenancy/internal/repository"
	"github.com/nebari-dev/tenancy/internal/service"
	"github.com/nebari-dev/tenancy/internal/session"
	"gorm.io/gorm"
)

// app is the wired dependency graph a command runs against.
type app struct {
	db         *gorm.DB
	repos      *repository.Repositories
	workspaces *service.WorkspaceService
	migrator   *datasource.Migrator
	publisher  analytics.Publisher
}

// openApp connects to the database and builds every service from cfg.
// The schema must already be migrated.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.RBAC.Enabled {
		if err := rbac.InitEnforcer(database, slog.Default()); err != nil {
			return nil, fmt.Errorf("init rbac: %w", err)
		}
	} else {
		slog.Warn("RBAC disabled, every permission check is allowed")
		rbac.Disable()
	}

	publisher, err := newPublisher(cfg.Analytics)
	if err != nil {
		return nil, err
	}
	store, err := newBlobStore(ctx, cfg.Assets)
	if err != nil {
		publisher.Close()
		return nil, err
	}
	sealer, err := crypto.NewSealer(cfg.Encryption.Secret)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("init encryption: %w", err)
	}
	if sealer == nil {
		slog.Warn("No encryption secret configured, datasource configurations are stored in plaintext")
	}

	repos := repository.New(database)
	return &app{
		db:    database,
		repos: repos,
		workspaces: service.New(database, repos, service.Options{
			Assets:    asset.NewService(repos.Assets, store),
			Publisher: publisher,
			LogoMaxKB: cfg.Assets.LogoMaxKB,
		}),
		migrator:  datasource.NewMigrator(database, repos, sealer),
		publisher: publisher,
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		slog.Warn("Failed to close analytics publisher", "error", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// actAs loads the user with email and puts them in the session.
func (a *app) actAs(ctx context.Context, email string) (context.Context, *models.User, error) {
	if email == "" {
		return nil, nil, fmt.Errorf("--user-email is required")
	}
	user, err := a.repos.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("find user %s: %w", email, err)
	}
	return session.WithUser(ctx, user), user, nil
}

func newPublisher(cfg config.AnalyticsConfig) (analytics.Publisher, error) {
	switch cfg.Type {
	case "valkey":
		p, err := analytics.NewValkeyPublisher(cfg.ValkeyAddr, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("connect analytics: %w", err)
		}
		return p, nil
	case "log":
		return analytics.LogPublisher{}, nil
	case "none", "":
		return analytics.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported analytics type: %s", cfg.Type)
	}
}

func newBlobStore(ctx context.Context, cfg config.AssetsConfig) (asset.BlobStore, error) {
	switch cfg.Backend {
	case "s3":
		store, err := asset.NewS3Store(ctx, asset.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect asset store: %w", err)
		}
		return store, nil
	case "database", "":
		return asset.DatabaseStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported asset backend: %s", cfg.Backend)
	}
}

func parseID(flag, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return id, nil
}
