package main

import (
	"fmt"
	"os"

	"github.com/nebari-dev/tenancy/internal/config"
	"github.com/nebari-dev/tenancy/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tenancy",
	Short: "Tenancy - workspace lifecycle tooling",
	Long: `Tenancy provisions and maintains workspaces: their default access and
permission groups, members, and datasource configuration storage.

Configuration is read from config.yaml in the current directory or
/etc/tenancy/, overridden by TENANCY_* environment variables.`,
	Example: `  # Prepare the database
  tenancy migrate

  # Create a workspace for a user and inspect its members
  tenancy workspace create --name "Acme Corp" --user-email ada@example.com
  tenancy workspace members --id <workspace-id> --user-email ada@example.com -o json

  # Complete workspaces whose provisioning was interrupted
  tenancy workspace repair --dry-run`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logger.Init(cfg.Log.Format, cfg.Log.Level)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tenancy", Version)
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "workspace", Title: "Workspace Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	workspaceCmd.GroupID = "workspace"
	datasourceCmd.GroupID = "admin"
	migrateCmd.GroupID = "admin"

	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(datasourceCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
