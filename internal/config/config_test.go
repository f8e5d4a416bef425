package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "./tenancy.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Assets.Backend != "database" || cfg.Assets.LogoMaxKB != 250 {
		t.Errorf("assets = %+v", cfg.Assets)
	}
	if cfg.Analytics.Key != "tenancy:events" {
		t.Errorf("analytics key = %q", cfg.Analytics.Key)
	}
	if !cfg.RBAC.Enabled {
		t.Error("rbac should be enabled by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TENANCY_DATABASE_DRIVER", "postgres")
	t.Setenv("TENANCY_ASSETS_LOGO_MAX_KB", "512")
	t.Setenv("TENANCY_ENCRYPTION_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Assets.LogoMaxKB != 512 {
		t.Errorf("logo_max_kb = %d, want 512", cfg.Assets.LogoMaxKB)
	}
	if cfg.Encryption.Secret != "s3cret" {
		t.Errorf("secret = %q", cfg.Encryption.Secret)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "log:\n  format: json\nanalytics:\n  type: valkey\n"
	if err := os.WriteFile("config.yaml", []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Format != "json" || cfg.Analytics.Type != "valkey" {
		t.Errorf("file values not applied: log=%+v analytics=%+v", cfg.Log, cfg.Analytics)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default level lost: %q", cfg.Log.Level)
	}
}
