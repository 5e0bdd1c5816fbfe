package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/config"
	"github.com/holon-run/ota/pkg/publish"
	"github.com/spf13/cobra"
)

var (
	branchListLimit int
	branchListJSON  bool
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branches",
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the app's branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := config.LoadProject(projectDir)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		branches, err := client.ListBranches(cmd.Context(), project.ProjectID, branchListLimit)
		if err != nil {
			return err
		}
		if branchListJSON {
			return publish.WriteJSON(cmd.OutOrStdout(), branches)
		}
		return printBranches(cmd.OutOrStdout(), branches)
	},
}

func printBranches(w io.Writer, branches []api.Branch) error {
	if len(branches) == 0 {
		_, err := fmt.Fprintln(w, "No branches")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tCREATED")
	for _, b := range branches {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.ID, b.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func init() {
	branchListCmd.Flags().IntVar(&branchListLimit, "limit", api.DefaultListLimit, "Maximum number of branches")
	branchListCmd.Flags().BoolVar(&branchListJSON, "json", false, "Print branches as JSON")
	branchCmd.AddCommand(branchListCmd)
	rootCmd.AddCommand(branchCmd)
}
