package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/holon-run/ota/pkg/github"
	"github.com/spf13/cobra"
)

// These variables are set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCheck bool
var versionQuiet bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for the ota CLI.

This shows the version number, git commit SHA, and build date.
With --check, the latest release on GitHub is compared with this build.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionCheck {
			return checkForUpdates(cmd.Context(), out)
		}

		fmt.Fprintf(out, "ota version %s\n", Version)
		if Commit != "" && Commit != "unknown" {
			fmt.Fprintf(out, "commit: %s\n", Commit)
		}
		if BuildDate != "" && BuildDate != "unknown" {
			fmt.Fprintf(out, "built at: %s\n", BuildDate)
		}
		return nil
	},
}

// checkForUpdates reports whether a newer release exists. Failures are
// printed as warnings and never fail the command.
func checkForUpdates(ctx context.Context, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fmt.Fprintf(out, "ota version %s\n", Version)

	if os.Getenv(github.VersionCheckEnvVar) != "" {
		return nil
	}

	client, err := github.NewClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to check for updates: %v\n", err)
		return nil
	}
	release, upToDate, err := github.NewVersionChecker(client).Check(ctx, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to check for updates: %v\n", err)
		return nil
	}

	if upToDate {
		if !versionQuiet {
			fmt.Fprintf(out, "You're running the latest version (%s)\n", release.TagName)
		}
		return nil
	}

	fmt.Fprintf(out, "\nA newer version is available!\n")
	fmt.Fprintf(out, "   Current: %s\n", Version)
	fmt.Fprintf(out, "   Latest:  %s\n", release.TagName)
	fmt.Fprintf(out, "\nInstall instructions:\n")
	if isHomebrewAvailable() {
		fmt.Fprintf(out, "   brew update && brew upgrade ota\n")
	} else {
		fmt.Fprintf(out, "   Download: %s\n", release.HTMLURL)
	}
	return nil
}

func isHomebrewAvailable() bool {
	_, err := exec.LookPath("brew")
	return err == nil
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check for newer ota releases")
	versionCmd.Flags().BoolVar(&versionQuiet, "quiet", false, "Quiet mode: suppress success message when up to date")
	rootCmd.AddCommand(versionCmd)
}
