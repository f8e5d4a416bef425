package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	dsEnvironment string
	dsOutput      string
)

var datasourceCmd = &cobra.Command{
	Use:   "datasource",
	Short: "Manage datasource configuration storage",
}

var datasourceMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move embedded datasource configurations into per-environment storage",
	Long: `Move the configuration still embedded on datasources into configuration
storage records for one environment. Configurations are encrypted when
encryption.secret is set. A datasource that fails is reported and left as
it was; the others are still migrated.`,
	Example: `  tenancy datasource migrate --environment production`,
	Args:    cobra.NoArgs,
	RunE:    runDatasourceMigrate,
}

func init() {
	datasourceMigrateCmd.Flags().StringVar(&dsEnvironment, "environment", "", "Environment ID the storage records belong to")
	datasourceMigrateCmd.Flags().StringVarP(&dsOutput, "output", "o", "table", "Output format: table, json or yaml")
	datasourceMigrateCmd.MarkFlagRequired("environment")

	datasourceCmd.AddCommand(datasourceMigrateCmd)
}

type migrateResult struct {
	Migrated []string          `json:"migrated" yaml:"migrated"`
	Failed   map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

func runDatasourceMigrate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.migrator.MigrateAll(cmd.Context(), dsEnvironment)
	if err != nil {
		return err
	}

	result := migrateResult{Migrated: []string{}}
	for _, id := range report.Migrated {
		result.Migrated = append(result.Migrated, id.String())
	}
	if len(report.Failures) > 0 {
		result.Failed = make(map[string]string, len(report.Failures))
		for _, f := range report.Failures {
			result.Failed[f.DatasourceID.String()] = f.Err.Error()
		}
	}

	if err := printOutput(cmd.OutOrStdout(), dsOutput, result, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "DATASOURCE\tSTATUS")
		for _, id := range report.Migrated {
			fmt.Fprintf(w, "%s\tmigrated\n", id)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(w, "%s\tfailed: %v\n", f.DatasourceID, f.Err)
		}
	}); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d datasource(s) could not be migrated", len(report.Failures))
	}
	return nil
}
