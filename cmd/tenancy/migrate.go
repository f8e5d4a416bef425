package main

import (
	"fmt"
	"log/slog"

	"github.com/nebari-dev/tenancy/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Create or update the schema, seed the plugin catalogue and the default tenant.

If ADMIN_EMAIL is set and the database has no users yet, an administrator
is created along with their personal workspace.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	database, err := db.New(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	tenantID, err := db.GetOrCreateDefaultTenantID(database)
	if err != nil {
		return err
	}
	admin, err := db.CreateDefaultAdmin(database, tenantID)
	if err != nil {
		return err
	}
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database migrated (tenant %s)\n", tenantID)
	if admin == nil {
		return nil
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ws, err := a.workspaces.CreateDefault(ctx, nil, admin)
	if err != nil {
		return fmt.Errorf("create workspace for %s: %w", admin.Email, err)
	}
	slog.Info("Created administrator workspace", "workspace_id", ws.ID, "email", admin.Email)
	fmt.Fprintf(out, "Created administrator %s with workspace %q (%s)\n", admin.Email, ws.Name, ws.ID)
	return nil
}
