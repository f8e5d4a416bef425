package db

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nebari-dev/tenancy/internal/config"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a new database connection based on configuration
func New(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		// WAL lets readers proceed while the single writer holds the lock
		dialector = sqlite.Open(cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000")
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		slog.Info("Configured SQLite with WAL mode and single connection", "dsn", cfg.DSN)
		return db, nil
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 100
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 60
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

	slog.Info("Configured PostgreSQL connection pool",
		"max_idle_conns", maxIdleConns,
		"max_open_conns", maxOpenConns,
		"conn_max_lifetime_min", connMaxLifetime)
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.ServerConfig{},
		&models.User{},
		&models.Workspace{},
		&models.UserGroup{},
		&models.PermissionGroup{},
		&models.Plugin{},
		&models.Application{},
		&models.Asset{},
		&models.Datasource{},
		&models.DatasourceConfigurationStorage{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := seedDefaultPlugins(db); err != nil {
		return fmt.Errorf("failed to seed default plugins: %w", err)
	}
	return nil
}

// defaultPlugins is the plugin catalogue every installation starts with.
// DefaultInstall plugins land in each new workspace.
var defaultPlugins = []models.Plugin{
	{Name: "REST API", PackageName: "restapi-plugin", DefaultInstall: true},
	{Name: "GraphQL API", PackageName: "graphql-plugin", DefaultInstall: true},
	{Name: "PostgreSQL", PackageName: "postgres-plugin"},
	{Name: "MongoDB", PackageName: "mongo-plugin"},
	{Name: "S3", PackageName: "amazons3-plugin"},
}

// seedDefaultPlugins creates catalogue entries that don't exist yet, keyed by package name
func seedDefaultPlugins(db *gorm.DB) error {
	for _, plugin := range defaultPlugins {
		var existing models.Plugin
		err := db.Where("package_name = ?", plugin.PackageName).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&plugin).Error; err != nil {
			return err
		}
		slog.Info("Created default plugin", "package", plugin.PackageName)
	}
	return nil
}
