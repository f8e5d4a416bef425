package datasource

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/crypto"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/repository"
)

// Store reads migrated configuration back.
type Store struct {
	storage *repository.DatasourceStorageRepository
	sealer  *crypto.Sealer
}

func NewStore(repos *repository.Repositories, sealer *crypto.Sealer) *Store {
	return &Store{storage: repos.DatasourceStorage, sealer: sealer}
}

// GetConfiguration returns the decrypted configuration of a datasource in an
// environment.
func (s *Store) GetConfiguration(ctx context.Context, datasourceID uuid.UUID, environmentID string) (*models.DatasourceConfiguration, error) {
	row, err := s.storage.FindByDatasourceAndEnvironment(ctx, datasourceID, environmentID)
	if err != nil {
		return nil, err
	}
	var conf models.DatasourceConfiguration
	if err := s.sealer.OpenJSON(row.Configuration, &conf); err != nil {
		return nil, fmt.Errorf("open configuration of datasource %s: %w", datasourceID, err)
	}
	return &conf, nil
}
