package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/config"
	"github.com/holon-run/ota/pkg/export"
	"github.com/holon-run/ota/pkg/publish"
	"github.com/spf13/cobra"
)

var (
	publishBranch         string
	publishChannel        string
	publishAuto           bool
	publishNonInteractive bool
	publishMessage        string
	publishRepublish      bool
	publishGroup          string
	publishPlatform       string
	publishInputDir       string
	publishSkipBundler    bool
	publishClearCache     bool
	publishBundlerImage   string
	publishJSON           bool
)

var (
	republishGroup   string
	republishBranch  string
	republishMessage string
	republishJSON    bool
)

var (
	listBranch string
	listLimit  int
	listJSON   bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Manage updates",
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish an update group to a branch",
	Long: `Export the app, upload its assets and publish an update group.

Exactly one target is used: --branch publishes to a branch (created if it
does not exist), --channel publishes to the branch the channel points at,
and --auto uses the current git branch and last commit message. Without a
target, an interactive session prompts for a branch.

Examples:
  ota update publish --branch production --message "Fix login crash"
  ota update publish --channel preview --non-interactive --message "Nightly"
  ota update publish --auto --platform ios`,
	// Flags are checked before .ota/config.yaml is read.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := publish.Validate(currentPublishFlags()); err != nil {
			return err
		}
		return loadCLIConfig(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := currentPublishFlags()

		platform, _ := cliConfig.ResolvePlatform(publishPlatform)
		if err := export.ValidatePlatform(platform); err != nil {
			return err
		}
		inputDir, _ := cliConfig.ResolveInputDir(publishInputDir)

		ctx := cmd.Context()
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var bundler export.Bundler
		if !publishSkipBundler {
			image, _ := cliConfig.ResolveBundlerImage(publishBundlerImage)
			if bundler, err = newBundler(image); err != nil {
				return err
			}
		}
		uploader, err := newUploader(ctx)
		if err != nil {
			return err
		}

		runner := publish.NewRunner(publish.Dependencies{
			API:      client,
			Source:   newSourceControl(projectDir),
			Prompter: newPrompter(!flags.NonInteractive),
			Exporter: export.NewExporter(bundler),
			Uploader: uploader,
		})
		result, err := runner.Publish(ctx, publish.PublishOptions{
			Flags:       flags,
			ProjectDir:  projectDir,
			Platform:    platform,
			InputDir:    inputDir,
			SkipBundler: publishSkipBundler,
			ClearCache:  publishClearCache,
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result, publishJSON)
	},
}

func currentPublishFlags() publish.PublishFlags {
	return publish.PublishFlags{
		Branch:         publishBranch,
		Channel:        publishChannel,
		Auto:           publishAuto,
		NonInteractive: !isInteractive(publishNonInteractive, publishJSON),
		Message:        publishMessage,
		Republish:      publishRepublish,
		Group:          publishGroup,
	}
}

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Publish an existing update group again",
	Long: `Publish the manifests of an existing update group again, on the same
branch or on another one, without exporting or uploading anything.

Examples:
  ota update republish --group 2f3c...
  ota update republish --group 2f3c... --branch production --message "Promote"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		runner := publish.NewRunner(publish.Dependencies{API: client})
		result, err := runner.Republish(cmd.Context(), publish.RepublishOptions{
			Group:      republishGroup,
			Branch:     republishBranch,
			Message:    republishMessage,
			ProjectDir: projectDir,
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result, republishJSON)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent updates on a branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := config.LoadProject(projectDir)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		updates, err := client.ListUpdates(cmd.Context(), project.ProjectID, listBranch, listLimit)
		if err != nil {
			return err
		}
		if listJSON {
			return publish.WriteJSON(cmd.OutOrStdout(), updates)
		}
		return printUpdates(cmd.OutOrStdout(), listBranch, updates)
	},
}

func printResult(w io.Writer, result *publish.PublishResult, asJSON bool) error {
	if asJSON {
		return publish.WriteJSON(w, result)
	}
	return publish.RenderSummary(w, result)
}

func printUpdates(w io.Writer, branch string, updates []api.UpdateFragment) error {
	if len(updates) == 0 {
		_, err := fmt.Fprintf(w, "No updates on branch %q\n", branch)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPLATFORM\tRUNTIME\tCREATED\tMESSAGE")
	for _, u := range updates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Group, u.Platform, u.RuntimeVersion,
			u.CreatedAt.Format("2006-01-02 15:04"), publish.TruncateMessage(u.Message))
	}
	return tw.Flush()
}

func init() {
	publishCmd.Flags().StringVar(&publishBranch, "branch", "", "Branch to publish on")
	publishCmd.Flags().StringVar(&publishChannel, "channel", "", "Channel whose branch to publish on")
	publishCmd.Flags().BoolVar(&publishAuto, "auto", false, "Use the current git branch and last commit message")
	publishCmd.Flags().BoolVar(&publishNonInteractive, "non-interactive", false, "Never prompt")
	publishCmd.Flags().StringVarP(&publishMessage, "message", "m", "", "Short message describing the update")
	publishCmd.Flags().BoolVar(&publishRepublish, "republish", false, "Deprecated: use \"ota update republish\"")
	publishCmd.Flags().StringVar(&publishGroup, "group", "", "Deprecated: use \"ota update republish\"")
	publishCmd.Flags().StringVarP(&publishPlatform, "platform", "p", "", "Platform to publish: android, ios, all (default all)")
	publishCmd.Flags().StringVar(&publishInputDir, "input-dir", "", "Export directory, relative to the project (default dist)")
	publishCmd.Flags().BoolVar(&publishSkipBundler, "skip-bundler", false, "Publish an existing export instead of running the bundler")
	publishCmd.Flags().BoolVar(&publishClearCache, "clear-cache", false, "Clear the bundler cache before exporting")
	publishCmd.Flags().StringVar(&publishBundlerImage, "bundler-image", "", "Run the bundler inside this Docker image (\"auto\" picks a node image from the project)")
	publishCmd.Flags().BoolVar(&publishJSON, "json", false, "Print the result as JSON (implies --non-interactive)")
	_ = publishCmd.Flags().MarkHidden("republish")
	_ = publishCmd.Flags().MarkHidden("group")

	republishCmd.Flags().StringVar(&republishGroup, "group", "", "Update group to republish")
	republishCmd.Flags().StringVar(&republishBranch, "branch", "", "Destination branch (default: the group's branch)")
	republishCmd.Flags().StringVarP(&republishMessage, "message", "m", "", "Message for the new update group")
	republishCmd.Flags().BoolVar(&republishJSON, "json", false, "Print the result as JSON")
	_ = republishCmd.MarkFlagRequired("group")

	listCmd.Flags().StringVar(&listBranch, "branch", "", "Branch to list updates from")
	listCmd.Flags().IntVar(&listLimit, "limit", api.DefaultListLimit, "Maximum number of updates")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print updates as JSON")
	_ = listCmd.MarkFlagRequired("branch")

	updateCmd.AddCommand(publishCmd, republishCmd, listCmd)
	rootCmd.AddCommand(updateCmd)
}
