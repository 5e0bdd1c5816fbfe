package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Metadata is the decoded metadata.json.
type Metadata struct {
	Version      int                         `json:"version"`
	Bundler      string                      `json:"bundler"`
	FileMetadata map[string]PlatformMetadata `json:"fileMetadata"`
}

// PlatformMetadata lists one platform's files, relative to the export dir.
type PlatformMetadata struct {
	Bundle string          `json:"bundle"`
	Assets []AssetMetadata `json:"assets"`
}

// AssetMetadata is one asset entry in metadata.json.
type AssetMetadata struct {
	Path string `json:"path"`
	Ext  string `json:"ext"`
}

// ReadMetadata reads <dir>/metadata.json.
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &meta, nil
}

// Collect reads the export in dir and hashes the files for platform
// (android, ios, or all).
func Collect(dir, platform string) (*Result, error) {
	if err := ValidatePlatform(platform); err != nil {
		return nil, err
	}

	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{Dir: dir, Platforms: make(map[string]*PlatformExport)}
	cache := make(map[string]Asset)

	for name, files := range meta.FileMetadata {
		if name != PlatformAndroid && name != PlatformIOS {
			continue
		}
		if platform != PlatformAll && name != platform {
			continue
		}
		if files.Bundle == "" {
			return nil, fmt.Errorf("export metadata has no bundle for %s", name)
		}

		launch, err := hashCached(cache, filepath.Join(dir, filepath.FromSlash(files.Bundle)), bundleExt(files.Bundle))
		if err != nil {
			return nil, err
		}
		launch.ContentType = BundleContentType

		pe := &PlatformExport{Platform: name, LaunchAsset: launch, Assets: make([]Asset, 0, len(files.Assets))}
		for _, am := range files.Assets {
			asset, err := hashCached(cache, filepath.Join(dir, filepath.FromSlash(am.Path)), am.Ext)
			if err != nil {
				return nil, err
			}
			pe.Assets = append(pe.Assets, asset)
		}
		result.Platforms[name] = pe
	}

	if len(result.Platforms) == 0 {
		return nil, fmt.Errorf("export in %s contains no files for platform %q", dir, platform)
	}
	return result, nil
}

func hashCached(cache map[string]Asset, path, ext string) (Asset, error) {
	if a, ok := cache[path]; ok {
		return a, nil
	}
	a, err := HashFile(path, ext)
	if err != nil {
		return Asset{}, err
	}
	cache[path] = a
	return a, nil
}

func bundleExt(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "bundle"
	}
	return ext
}
