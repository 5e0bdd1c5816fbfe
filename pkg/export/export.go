// Package export produces and reads the JavaScript bundle export that an
// update is built from.
//
// The bundler writes <input-dir>/metadata.json alongside the bundles and
// assets. Collect reads it and hashes every referenced file so the assets
// can be uploaded content-addressed and described in the update manifest.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	holonlog "github.com/holon-run/ota/pkg/log"
)

// Platforms that can receive updates.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformAll     = "all"
)

// MetadataFile is the export index written by the bundler
const MetadataFile = "metadata.json"

// Options selects what to export and from where.
type Options struct {
	// ProjectDir is the project root the bundler runs in
	ProjectDir string
	// InputDir is the export directory, absolute or relative to ProjectDir
	InputDir string
	// Platform is android, ios, or all
	Platform string
	// SkipBundler reuses an existing export instead of running the bundler
	SkipBundler bool
	// ClearCache clears the bundler cache before exporting
	ClearCache bool
}

// Bundler produces an export on disk.
type Bundler interface {
	Bundle(ctx context.Context, req BundleRequest) error
}

// BundleRequest is what a Bundler needs to run.
type BundleRequest struct {
	ProjectDir string
	// OutputDir is relative to ProjectDir
	OutputDir  string
	Platform   string
	ClearCache bool
}

// Exporter runs the bundler (unless skipped) and collects the result.
type Exporter struct {
	Bundler Bundler
}

// NewExporter returns an Exporter that bundles with b.
func NewExporter(b Bundler) *Exporter {
	return &Exporter{Bundler: b}
}

// Export bundles the project and returns the collected export.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Result, error) {
	platform := opts.Platform
	if platform == "" {
		platform = PlatformAll
	}
	if err := ValidatePlatform(platform); err != nil {
		return nil, err
	}

	inputDir := opts.InputDir
	if !filepath.IsAbs(inputDir) {
		inputDir = filepath.Join(opts.ProjectDir, inputDir)
	}

	if !opts.SkipBundler {
		if e.Bundler == nil {
			return nil, fmt.Errorf("no bundler configured")
		}
		rel, err := filepath.Rel(opts.ProjectDir, inputDir)
		if err != nil {
			rel = inputDir
		}
		holonlog.Info("exporting bundle", "dir", inputDir, "platform", platform)
		if err := e.Bundler.Bundle(ctx, BundleRequest{
			ProjectDir: opts.ProjectDir,
			OutputDir:  rel,
			Platform:   platform,
			ClearCache: opts.ClearCache,
		}); err != nil {
			return nil, fmt.Errorf("bundler failed: %w", err)
		}
	}

	result, err := Collect(inputDir, platform)
	if err != nil {
		if opts.SkipBundler && errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (remove --skip-bundler to create the export)", err)
		}
		return nil, err
	}
	return result, nil
}

// ValidatePlatform rejects unknown platform selections.
func ValidatePlatform(platform string) error {
	switch platform {
	case PlatformAndroid, PlatformIOS, PlatformAll:
		return nil
	default:
		return fmt.Errorf("unsupported platform %q (expected android, ios, or all)", platform)
	}
}

// Asset is one exported file, hashed and ready to upload.
type Asset struct {
	// Path is the absolute file path
	Path string `json:"path"`
	// Ext is the file extension without the leading dot
	Ext string `json:"ext"`
	// ContentType is the MIME type the file is served with
	ContentType string `json:"contentType"`
	// SHA256 is the unpadded base64url SHA-256 of the contents
	SHA256 string `json:"sha256"`
	// StorageKey addresses the file in asset storage
	StorageKey string `json:"storageKey"`
	// BundleKey is the hex MD5 of the contents
	BundleKey string `json:"bundleKey"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// PlatformExport is the launch bundle and assets for one platform.
type PlatformExport struct {
	Platform    string  `json:"platform"`
	LaunchAsset Asset   `json:"launchAsset"`
	Assets      []Asset `json:"assets"`
}

// Result is a collected export.
type Result struct {
	Dir       string                     `json:"dir"`
	Platforms map[string]*PlatformExport `json:"platforms"`
}

// PlatformNames returns the exported platforms in sorted order.
func (r *Result) PlatformNames() []string {
	names := make([]string, 0, len(r.Platforms))
	for name := range r.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Assets returns the files of the given platforms, launch bundles
// included, or of every platform when none is given. Files shared between
// platforms appear once. Unknown platforms are skipped.
func (r *Result) Assets(platforms ...string) []Asset {
	if len(platforms) == 0 {
		platforms = r.PlatformNames()
	}
	seen := make(map[string]bool)
	var out []Asset
	for _, name := range platforms {
		p, ok := r.Platforms[name]
		if !ok {
			continue
		}
		for _, a := range append([]Asset{p.LaunchAsset}, p.Assets...) {
			if seen[a.StorageKey] {
				continue
			}
			seen[a.StorageKey] = true
			out = append(out, a)
		}
	}
	return out
}
