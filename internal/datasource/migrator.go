// Package datasource moves datasource configuration out of the datasource
// record and into per-environment configuration storage.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/audit"
	"github.com/nebari-dev/tenancy/internal/crypto"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/repository"
	"github.com/nebari-dev/tenancy/internal/session"
	"gorm.io/gorm"
)

// ErrEnvironmentRequired is returned when no environment id is given.
var ErrEnvironmentRequired = errors.New("environment id is required")

// Migrator performs the move for one datasource at a time.
type Migrator struct {
	db          *gorm.DB
	sealer      *crypto.Sealer
	datasources *repository.DatasourceRepository
	storage     *repository.DatasourceStorageRepository
}

// NewMigrator creates a migrator. A nil sealer stores configuration unencrypted.
func NewMigrator(db *gorm.DB, repos *repository.Repositories, sealer *crypto.Sealer) *Migrator {
	return &Migrator{
		db:          db,
		sealer:      sealer,
		datasources: repos.Datasources,
		storage:     repos.DatasourceStorage,
	}
}

// Migrate moves ds's embedded configuration into storage for environmentID.
// It returns nil, nil when ds carries no embedded configuration, so running
// it again after a successful move does nothing.
//
// The storage row is written before the datasource and both writes share a
// transaction. On failure ds is left as it was passed in.
func (m *Migrator) Migrate(ctx context.Context, ds *models.Datasource, environmentID string) (*models.DatasourceConfigurationStorage, error) {
	if ds.Configuration == nil {
		return nil, nil
	}
	if environmentID == "" {
		return nil, ErrEnvironmentRequired
	}

	sealed, err := m.sealer.SealJSON(ds.Configuration)
	if err != nil {
		return nil, fmt.Errorf("seal configuration of datasource %s: %w", ds.ID, err)
	}

	original, hadStorage := ds.Configuration, ds.HasConfigurationStorage
	var storage *models.DatasourceConfigurationStorage

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		storageRepo := m.storage.WithTx(tx)

		// A previous run may have written storage and then failed on the
		// datasource. Overwrite that row rather than adding a second one.
		existing, err := storageRepo.FindByDatasourceAndEnvironment(ctx, ds.ID, environmentID)
		switch {
		case err == nil:
			storage = existing
		case errors.Is(err, repository.ErrNotFound):
			storage = &models.DatasourceConfigurationStorage{
				DatasourceID:  ds.ID,
				EnvironmentID: environmentID,
			}
		default:
			return fmt.Errorf("find configuration storage: %w", err)
		}

		storage.Configuration = sealed
		storage.Invalids = append([]string(nil), ds.Invalids...)
		storage.Flags = []string{}
		if err := storageRepo.Save(ctx, storage); err != nil {
			return fmt.Errorf("save configuration storage: %w", err)
		}

		ds.Configuration = nil
		ds.HasConfigurationStorage = true
		if err := m.datasources.WithTx(tx).Save(ctx, ds); err != nil {
			return fmt.Errorf("save datasource: %w", err)
		}
		return nil
	})
	if err != nil {
		ds.Configuration, ds.HasConfigurationStorage = original, hadStorage
		return nil, fmt.Errorf("migrate datasource %s: %w", ds.ID, err)
	}

	var actor uuid.UUID
	if user := session.UserFromContext(ctx); user != nil {
		actor = user.ID
	}
	audit.Record(ctx, m.db, actor, audit.ActionMigrateDatasourceConfiguration, audit.DatasourceResource(ds.ID), map[string]string{
		"environment_id": environmentID,
	})

	slog.Info("Datasource configuration migrated",
		"datasource_id", ds.ID,
		"environment_id", environmentID,
		"storage_id", storage.ID)
	return storage, nil
}

// Failure records a datasource that could not be migrated.
type Failure struct {
	DatasourceID uuid.UUID
	Err          error
}

// Report summarises a MigrateAll run.
type Report struct {
	Migrated []uuid.UUID
	Failures []Failure
}

// MigrateAll migrates every datasource still carrying embedded configuration.
// A failing datasource does not stop the run.
func (m *Migrator) MigrateAll(ctx context.Context, environmentID string) (*Report, error) {
	if environmentID == "" {
		return nil, ErrEnvironmentRequired
	}
	sources, err := m.datasources.FindWithEmbeddedConfiguration(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}

	report := &Report{}
	for i := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ds := &sources[i]
		if _, err := m.Migrate(ctx, ds, environmentID); err != nil {
			slog.Error("Datasource migration failed", "datasource_id", ds.ID, "error", err)
			report.Failures = append(report.Failures, Failure{DatasourceID: ds.ID, Err: err})
			continue
		}
		report.Migrated = append(report.Migrated, ds.ID)
	}
	return report, nil
}
