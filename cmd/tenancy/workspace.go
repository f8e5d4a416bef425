package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/nebari-dev/tenancy/internal/asset"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/service"
	"github.com/spf13/cobra"
)

var (
	wsName       string
	wsID         string
	wsUserEmail  string
	wsDefault    bool
	wsOutput     string
	wsDryRun     bool
	wsLogoPath   string
	wsLogoDelete bool
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workspace owned by a user",
	Long: `Create a workspace with its default Administrator, Developer and App Viewer
groups. The user becomes the workspace's administrator.

With --default the workspace is named after the user's first name and
flagged as auto-generated; --name is ignored.`,
	Example: `  tenancy workspace create --name "Acme Corp" --user-email ada@example.com
  tenancy workspace create --default --user-email ada@example.com`,
	Args: cobra.NoArgs,
	RunE: runWorkspaceCreate,
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the workspaces a user can read",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceList,
}

var workspaceMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the members of a workspace",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceMembers,
}

var workspaceRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the roles a user holds in a workspace",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceRoles,
}

var workspaceArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive a workspace without applications",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceArchive,
}

var workspaceLogoCmd = &cobra.Command{
	Use:   "logo",
	Short: "Upload or delete a workspace logo",
	Example: `  tenancy workspace logo --id <id> --user-email ada@example.com --file logo.png
  tenancy workspace logo --id <id> --user-email ada@example.com --delete`,
	Args: cobra.NoArgs,
	RunE: runWorkspaceLogo,
}

var workspaceRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Complete workspaces whose provisioning was interrupted",
	Long: `Reconcile workspaces with their default groups: drop references to groups
that no longer exist or belong to another tenant, adopt default groups that
were created but never recorded, create the ones still missing, and put
recorded administrators back into the administrator group.

Without --id every workspace missing a default group reference is repaired.
Running repair on a healthy workspace changes nothing.`,
	Example: `  tenancy workspace repair --dry-run
  tenancy workspace repair --id <workspace-id>`,
	Args: cobra.NoArgs,
	RunE: runWorkspaceRepair,
}

func init() {
	workspaceCreateCmd.Flags().StringVar(&wsName, "name", "", "Workspace name")
	workspaceCreateCmd.Flags().StringVar(&wsUserEmail, "user-email", "", "Email of the owning user")
	workspaceCreateCmd.Flags().BoolVar(&wsDefault, "default", false, "Create the user's personal workspace")
	workspaceCreateCmd.Flags().StringVarP(&wsOutput, "output", "o", "table", "Output format: table, json or yaml")
	workspaceCreateCmd.MarkFlagRequired("user-email")

	workspaceListCmd.Flags().StringVar(&wsUserEmail, "user-email", "", "Email of the user")
	workspaceListCmd.Flags().StringVarP(&wsOutput, "output", "o", "table", "Output format: table, json or yaml")
	workspaceListCmd.MarkFlagRequired("user-email")

	for _, c := range []*cobra.Command{workspaceMembersCmd, workspaceRolesCmd, workspaceArchiveCmd, workspaceLogoCmd} {
		c.Flags().StringVar(&wsID, "id", "", "Workspace ID")
		c.Flags().StringVar(&wsUserEmail, "user-email", "", "Email of the acting user")
		c.Flags().StringVarP(&wsOutput, "output", "o", "table", "Output format: table, json or yaml")
		c.MarkFlagRequired("id")
		c.MarkFlagRequired("user-email")
	}
	workspaceLogoCmd.Flags().StringVar(&wsLogoPath, "file", "", "Image to upload")
	workspaceLogoCmd.Flags().BoolVar(&wsLogoDelete, "delete", false, "Delete the current logo")
	workspaceLogoCmd.MarkFlagsMutuallyExclusive("file", "delete")
	workspaceLogoCmd.MarkFlagsOneRequired("file", "delete")

	workspaceRepairCmd.Flags().StringVar(&wsID, "id", "", "Repair only this workspace")
	workspaceRepairCmd.Flags().BoolVar(&wsDryRun, "dry-run", false, "Show what would change without modifying")
	workspaceRepairCmd.Flags().StringVarP(&wsOutput, "output", "o", "table", "Output format: table, json or yaml")

	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceMembersCmd)
	workspaceCmd.AddCommand(workspaceRolesCmd)
	workspaceCmd.AddCommand(workspaceArchiveCmd)
	workspaceCmd.AddCommand(workspaceLogoCmd)
	workspaceCmd.AddCommand(workspaceRepairCmd)
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) error {
	if !wsDefault && wsName == "" {
		return fmt.Errorf("--name is required unless --default is set")
	}

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, user, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}

	var ws *models.Workspace
	if wsDefault {
		ws, err = a.workspaces.CreateDefault(ctx, nil, user)
	} else {
		ws, err = a.workspaces.Create(ctx, &models.Workspace{Name: wsName}, user)
	}
	if err != nil {
		return err
	}
	return printWorkspaces(cmd, []models.Workspace{*ws}, ws)
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}
	list, err := a.workspaces.List(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Workspace{}
	}
	return printWorkspaces(cmd, list, list)
}

func printWorkspaces(cmd *cobra.Command, list []models.Workspace, v any) error {
	return printOutput(cmd.OutOrStdout(), wsOutput, v, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tSLUG\tGROUPS\tAUTO")
		for _, ws := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
				ws.ID, ws.Name, ws.Slug, len(ws.DefaultUserGroupIDs), ws.IsAutoGenerated)
		}
	})
}

func runWorkspaceMembers(cmd *cobra.Command, args []string) error {
	id, err := parseID("id", wsID)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}
	members, err := a.workspaces.GetWorkspaceMembers(ctx, id)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), wsOutput, members, func(w *tabwriter.Writer) {
		if len(members) == 0 {
			fmt.Fprintln(w, "No members.")
			return
		}
		fmt.Fprintln(w, "USERNAME\tNAME\tGROUP")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Username, m.Name, m.GroupName)
		}
	})
}

func runWorkspaceRoles(cmd *cobra.Command, args []string) error {
	id, err := parseID("id", wsID)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}
	roles, err := a.workspaces.GetUserRolesForWorkspace(ctx, id)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), wsOutput, roles, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ROLE\tDESCRIPTION")
		for _, r := range roles {
			fmt.Fprintf(w, "%s\t%s\n", r.Name, r.Description)
		}
	})
}

func runWorkspaceArchive(cmd *cobra.Command, args []string) error {
	id, err := parseID("id", wsID)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}
	ws, err := a.workspaces.ArchiveByID(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived workspace %q (%s)\n", ws.Name, ws.ID)
	return nil
}

func runWorkspaceLogo(cmd *cobra.Command, args []string) error {
	id, err := parseID("id", wsID)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.actAs(cmd.Context(), wsUserEmail)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wsLogoDelete {
		ws, err := a.workspaces.DeleteLogo(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted logo of workspace %q\n", ws.Name)
		return nil
	}

	f, err := os.Open(wsLogoPath)
	if err != nil {
		return fmt.Errorf("open logo: %w", err)
	}
	defer f.Close()

	ws, err := a.workspaces.UploadLogo(ctx, id, asset.FilePart{
		Filename: filepath.Base(wsLogoPath),
		Content:  f,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded logo %s for workspace %q\n", ws.LogoAssetID, ws.Name)
	return nil
}

func runWorkspaceRepair(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	opts := service.RepairOptions{DryRun: wsDryRun}

	var reports []service.RepairReport
	if wsID != "" {
		id, err := parseID("id", wsID)
		if err != nil {
			return err
		}
		report, err := a.workspaces.Repair(ctx, id, opts)
		if err != nil {
			return err
		}
		reports = []service.RepairReport{*report}
	} else {
		reports, err = a.workspaces.RepairAll(ctx, opts)
		if err != nil {
			return err
		}
	}

	return printOutput(cmd.OutOrStdout(), wsOutput, reports, func(w *tabwriter.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "All workspaces are complete.")
			return
		}
		fmt.Fprintln(w, "WORKSPACE\tNAME\tDROPPED\tADOPTED\tCREATED\tADMINS\tSTATUS")
		for _, r := range reports {
			status := "ok"
			switch {
			case r.Changed() && wsDryRun:
				status = "needs repair"
			case r.Changed():
				status = "repaired"
			case r.NoAdministrator:
				status = "no administrator"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.WorkspaceID, r.WorkspaceName, r.DroppedReferences, r.AdoptedGroups,
				r.CreatedUserGroups+r.CreatedPermissionGroups, r.AdminsRestored, status)
		}
	})
}
