// Package config provides configuration loading for ota.
//
// Two files are involved:
//   - .ota/config.yaml holds CLI defaults (API endpoint, asset storage,
//     bundler image, log level). It is searched from the project directory
//     upward, with precedence: CLI flags > config file > defaults.
//   - app.json (or app.yaml) holds the app config ("exp") and the project id.
//     See LoadProject.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name for ota CLI configuration
	ConfigDir = ".ota"
	// ConfigFile is the name of the configuration file
	ConfigFile = "config.yaml"
	// ConfigPath is the full path to the config file relative to project root
	ConfigPath = ConfigDir + "/" + ConfigFile

	// DefaultInputDir is where the bundler writes its export
	DefaultInputDir = "dist"
	// DefaultPlatform publishes every platform present in the export
	DefaultPlatform = "all"
	// DefaultAssetPrefix is the key prefix for uploaded assets
	DefaultAssetPrefix = "assets"
)

// CLIConfig represents the .ota/config.yaml file.
type CLIConfig struct {
	// APIURL overrides the GraphQL endpoint
	APIURL string `yaml:"api_url,omitempty"`

	// LogLevel is the default log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty"`

	// Platform is the default platform selection (android, ios, all)
	Platform string `yaml:"platform,omitempty"`

	// InputDir is the export directory, relative to the project root
	InputDir string `yaml:"input_dir,omitempty"`

	Bundler BundlerConfig `yaml:"bundler,omitempty"`

	Assets AssetsConfig `yaml:"assets,omitempty"`

	// path is the file the config was read from, empty for zero config
	path string
}

// BundlerConfig controls how the JavaScript export is produced.
type BundlerConfig struct {
	// Image runs the bundler inside this container image instead of on the host
	Image string `yaml:"image,omitempty"`

	// Command overrides the host bundler executable (default "npx")
	Command string `yaml:"command,omitempty"`
}

// AssetsConfig describes the S3-compatible bucket assets are uploaded to.
type AssetsConfig struct {
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// LoadCLIConfig loads .ota/config.yaml from dir or the nearest parent.
//
// If no config file is found, it returns a zero config and nil error.
// If a config file is found but cannot be parsed, it returns a ConfigError.
func LoadCLIConfig(dir string) (*CLIConfig, error) {
	configPath, err := findConfigPath(dir)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		return &CLIConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to read config file", Err: err}
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to parse config file", Err: err}
	}
	cfg.path = configPath

	return &cfg, nil
}

// Path returns the file this config was loaded from, or "" for a zero config.
func (c *CLIConfig) Path() string {
	return c.path
}

// findConfigPath searches for .ota/config.yaml in dir and its parent directories.
// It returns the full path to the config file, or empty string if not found.
func findConfigPath(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for {
		configPath := filepath.Join(absDir, ConfigPath)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(absDir)
		if parentDir == absDir {
			return "", nil
		}
		absDir = parentDir
	}
}

// ResolveString returns the effective value for a string configuration field.
// Precedence: cliValue > configValue > defaultValue.
// Returns the effective value and its source ("cli", "config", or "default").
func (c *CLIConfig) ResolveString(cliValue, configValue, defaultValue string) (string, string) {
	if cliValue != "" {
		return cliValue, "cli"
	}
	if configValue != "" {
		return configValue, "config"
	}
	return defaultValue, "default"
}

// ResolveAPIURL returns the effective GraphQL endpoint and its source.
// The OTA_API_URL environment variable sits between the flag and the file.
func (c *CLIConfig) ResolveAPIURL(cliValue, defaultValue string) (string, string) {
	if cliValue == "" {
		if env := os.Getenv(APIURLEnv); env != "" {
			return env, "env"
		}
	}
	return c.ResolveString(cliValue, c.APIURL, defaultValue)
}

// ResolveLogLevel returns the effective log level and its source.
func (c *CLIConfig) ResolveLogLevel(cliValue, defaultValue string) (string, string) {
	return c.ResolveString(cliValue, c.LogLevel, defaultValue)
}

// ResolvePlatform returns the effective platform selection and its source.
func (c *CLIConfig) ResolvePlatform(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.Platform, DefaultPlatform)
}

// ResolveInputDir returns the effective export directory and its source.
func (c *CLIConfig) ResolveInputDir(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.InputDir, DefaultInputDir)
}

// ResolveBundlerImage returns the effective bundler image and its source.
// An empty result means the bundler runs on the host.
func (c *CLIConfig) ResolveBundlerImage(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.Bundler.Image, "")
}

// ResolveAssets fills unset asset fields from the environment and defaults.
func (c *CLIConfig) ResolveAssets() AssetsConfig {
	out := c.Assets
	if env := os.Getenv(AssetsBucketEnv); env != "" && out.Bucket == "" {
		out.Bucket = env
	}
	if out.Region == "" {
		out.Region = os.Getenv("AWS_REGION")
	}
	if out.Prefix == "" {
		out.Prefix = DefaultAssetPrefix
	}
	return out
}

// HasAssetStorage returns true if an upload bucket is configured.
func (c *CLIConfig) HasAssetStorage() bool {
	return c.ResolveAssets().Bucket != ""
}
