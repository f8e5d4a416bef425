package datasource

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/crypto"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testEnv = "production"

func testSetup(t *testing.T) (*Migrator, *Store, *repository.Repositories, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Datasource{}, &models.DatasourceConfigurationStorage{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sealer, err := crypto.NewSealer("datasource-test-secret")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	repos := repository.New(db)
	return NewMigrator(db, repos, sealer), NewStore(repos, sealer), repos, db
}

func createDatasource(t *testing.T, repos *repository.Repositories, name string) *models.Datasource {
	t.Helper()
	ds := &models.Datasource{
		Name: name,
		Configuration: &models.DatasourceConfiguration{
			URL:            "postgres://db.internal:5432/app",
			Authentication: &models.DBAuth{AuthType: "basic", Username: "app", Password: "s3cret"},
		},
		Invalids: []string{"missing ssl mode"},
	}
	if err := repos.Datasources.Save(context.Background(), ds); err != nil {
		t.Fatalf("save datasource: %v", err)
	}
	return ds
}

func TestMigrate(t *testing.T) {
	m, store, repos, _ := testSetup(t)
	ctx := context.Background()
	ds := createDatasource(t, repos, "orders")

	storage, err := m.Migrate(ctx, ds, testEnv)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if storage == nil {
		t.Fatal("expected a storage record")
	}
	if storage.DatasourceID != ds.ID || storage.EnvironmentID != testEnv {
		t.Errorf("storage keyed wrong: %+v", storage)
	}
	if len(storage.Invalids) != 1 || storage.Invalids[0] != "missing ssl mode" {
		t.Errorf("invalids = %v", storage.Invalids)
	}
	if storage.Flags == nil || len(storage.Flags) != 0 {
		t.Errorf("flags = %v, want empty set", storage.Flags)
	}
	if !crypto.IsSealed(storage.Configuration) || strings.Contains(storage.Configuration, "s3cret") {
		t.Error("configuration stored unencrypted")
	}

	reloaded, err := repos.Datasources.FindByID(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Configuration != nil {
		t.Error("embedded configuration not cleared")
	}
	if !reloaded.HasConfigurationStorage {
		t.Error("configuration storage flag not set")
	}

	conf, err := store.GetConfiguration(ctx, ds.ID, testEnv)
	if err != nil {
		t.Fatalf("GetConfiguration: %v", err)
	}
	if conf.Authentication == nil || conf.Authentication.Password != "s3cret" {
		t.Errorf("decrypted configuration = %+v", conf)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	m, _, repos, _ := testSetup(t)
	ctx := context.Background()
	ds := createDatasource(t, repos, "orders")

	if _, err := m.Migrate(ctx, ds, testEnv); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	storage, err := m.Migrate(ctx, ds, testEnv)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if storage != nil {
		t.Error("second Migrate should be a no-op")
	}

	count, err := repos.DatasourceStorage.CountByDatasourceAndEnvironment(ctx, ds.ID, testEnv)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("storage count = %d, want 1", count)
	}
}

func TestMigrateWithoutConfiguration(t *testing.T) {
	m, _, _, _ := testSetup(t)
	storage, err := m.Migrate(context.Background(), &models.Datasource{Name: "empty"}, testEnv)
	if storage != nil || err != nil {
		t.Fatalf("Migrate = %v, %v; want nil, nil", storage, err)
	}
}

func TestMigrateRequiresEnvironment(t *testing.T) {
	m, _, repos, _ := testSetup(t)
	ds := createDatasource(t, repos, "orders")
	if _, err := m.Migrate(context.Background(), ds, ""); !errors.Is(err, ErrEnvironmentRequired) {
		t.Fatalf("expected ErrEnvironmentRequired, got %v", err)
	}
}

func TestMigrateRollsBackWhenDatasourceWriteFails(t *testing.T) {
	m, _, repos, db := testSetup(t)
	ctx := context.Background()
	ds := createDatasource(t, repos, "orders")

	err := db.Callback().Update().Before("gorm:update").Register("test:fail_datasource", func(tx *gorm.DB) {
		if tx.Statement.Table == "datasources" {
			tx.AddError(errors.New("injected failure"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := m.Migrate(ctx, ds, testEnv); err == nil {
		t.Fatal("expected migration to fail")
	}
	if ds.Configuration == nil || ds.HasConfigurationStorage {
		t.Error("caller's datasource was not restored")
	}

	count, _ := repos.DatasourceStorage.CountByDatasourceAndEnvironment(ctx, ds.ID, testEnv)
	if count != 0 {
		t.Errorf("storage count = %d after rollback, want 0", count)
	}
	stored, _ := repos.Datasources.FindByID(ctx, ds.ID)
	if stored.Configuration == nil {
		t.Error("configuration lost from datasource")
	}
}

func TestMigrateReusesLeftoverStorage(t *testing.T) {
	m, store, repos, _ := testSetup(t)
	ctx := context.Background()
	ds := createDatasource(t, repos, "orders")

	leftover := &models.DatasourceConfigurationStorage{DatasourceID: ds.ID, EnvironmentID: testEnv, Configuration: `{"url":"stale"}`}
	if err := repos.DatasourceStorage.Create(ctx, leftover); err != nil {
		t.Fatal(err)
	}

	storage, err := m.Migrate(ctx, ds, testEnv)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if storage.ID != leftover.ID {
		t.Error("expected the leftover storage row to be reused")
	}
	conf, err := store.GetConfiguration(ctx, ds.ID, testEnv)
	if err != nil {
		t.Fatal(err)
	}
	if conf.URL != "postgres://db.internal:5432/app" {
		t.Errorf("url = %q", conf.URL)
	}
}

func TestMigrateAll(t *testing.T) {
	m, _, repos, _ := testSetup(t)
	ctx := context.Background()
	a := createDatasource(t, repos, "a")
	b := createDatasource(t, repos, "b")
	if err := repos.Datasources.Save(ctx, &models.Datasource{Name: "bare"}); err != nil {
		t.Fatal(err)
	}

	report, err := m.MigrateAll(ctx, testEnv)
	if err != nil {
		t.Fatalf("MigrateAll: %v", err)
	}
	if len(report.Migrated) != 2 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		found := false
		for _, got := range report.Migrated {
			if got == id {
				found = true
			}
		}
		if !found {
			t.Errorf("datasource %v not migrated", id)
		}
	}

	again, err := m.MigrateAll(ctx, testEnv)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Migrated) != 0 {
		t.Errorf("second run migrated %d datasources, want 0", len(again.Migrated))
	}
}

func TestGetConfigurationMissing(t *testing.T) {
	_, store, _, _ := testSetup(t)
	ds := &models.Datasource{}
	if _, err := store.GetConfiguration(context.Background(), ds.ID, testEnv); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
