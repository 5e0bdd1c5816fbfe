package main

import (
	"fmt"
	"os"

	"github.com/holon-run/ota/pkg/config"
	holonlog "github.com/holon-run/ota/pkg/log"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	projectDir string
	apiURL     string

	// cliConfig is loaded once per invocation in PersistentPreRunE
	cliConfig = &config.CLIConfig{}
)

var rootCmd = &cobra.Command{
	Use:   "ota",
	Short: "Publish over-the-air updates for mobile apps",
	Long: `ota exports an app's JavaScript bundle, uploads its assets and publishes
the result as an update group on a branch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: loadCLIConfig,
}

// loadCLIConfig reads .ota/config.yaml and initializes logging. Commands
// with their own PersistentPreRunE call it after their checks.
func loadCLIConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadCLIConfig(projectDir)
	if err != nil {
		return err
	}
	cliConfig = cfg

	level, source := cliConfig.ResolveLogLevel(logLevel, holonlog.LevelInfo)
	if err := holonlog.Init(level); err != nil {
		return err
	}
	if path := cliConfig.Path(); path != "" {
		holonlog.Debug("loaded config", "path", path, "log_level_source", source)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "Path to the app project")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "GraphQL endpoint (overrides OTA_API_URL and .ota/config.yaml)")
	_ = rootCmd.PersistentFlags().MarkHidden("api-url")
}

// run executes the root command and returns the process exit code.
func run() int {
	defer func() { _ = holonlog.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
