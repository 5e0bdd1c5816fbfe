package main

import (
	"context"
	"fmt"
	"os"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/assets"
	"github.com/holon-run/ota/pkg/config"
	"github.com/holon-run/ota/pkg/export"
	nodeimage "github.com/holon-run/ota/pkg/image"
	holonlog "github.com/holon-run/ota/pkg/log"
	"github.com/holon-run/ota/pkg/prompt"
	"github.com/holon-run/ota/pkg/publish"
	"github.com/mattn/go-isatty"
)

// newAPIClient retries queries on 5xx and 429. Mutations opt out per call.
func newAPIClient() (*api.Client, error) {
	url, source := cliConfig.ResolveAPIURL(apiURL, api.DefaultBaseURL)
	holonlog.Debug("using API endpoint", "url", url, "source", source)
	return api.NewClientFromEnv(
		api.WithBaseURL(url),
		api.WithRetryConfig(api.DefaultRetryConfig()),
	)
}

// newBundler runs the bundler in a container when an image is configured,
// on the host otherwise. The image "auto" is picked from the Node version
// the project pins.
func newBundler(image string) (export.Bundler, error) {
	if image == "" {
		return &export.LocalBundler{Command: cliConfig.Bundler.Command}, nil
	}
	if image == nodeimage.Auto {
		result := nodeimage.NewDetector(projectDir).Detect()
		holonlog.Info("bundler image detected", "image", result.Image, "signals", result.Signals)
		holonlog.Debug(nodeimage.FormatResult(result))
		image = result.Image
	}
	return export.NewDockerBundler(image)
}

func newUploader(ctx context.Context) (*assets.Uploader, error) {
	storage := cliConfig.ResolveAssets()
	if storage.Bucket == "" {
		return nil, &config.ConfigError{
			Path:    cliConfig.Path(),
			Message: fmt.Sprintf("asset storage is not configured: set assets.bucket in %s or %s", config.ConfigPath, config.AssetsBucketEnv),
		}
	}
	client, err := assets.NewS3Client(ctx, storage)
	if err != nil {
		return nil, err
	}
	holonlog.Debug("using asset storage", "bucket", storage.Bucket, "prefix", storage.Prefix, "endpoint", storage.Endpoint)
	return assets.NewUploader(client, storage.Bucket, storage.Prefix), nil
}

// isInteractive reports whether prompts may be shown.
func isInteractive(nonInteractive, jsonOutput bool) bool {
	if nonInteractive || jsonOutput {
		return false
	}
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newPrompter(interactive bool) publish.Prompter {
	if !interactive {
		return nil
	}
	return prompt.HuhPrompter{}
}
