package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	// RepoOwner is the GitHub owner of the ota repository
	RepoOwner = "holon-run"
	// RepoName is the GitHub name of the ota repository
	RepoName = "ota"
	// VersionCheckCacheFile is the filename for the version check cache
	VersionCheckCacheFile = "version_check_cache.json"
	// VersionCheckCacheTTL is how long a cached check stays valid
	VersionCheckCacheTTL = 24 * time.Hour
	// VersionCheckEnvVar disables version checking when set
	VersionCheckEnvVar = "OTA_NO_VERSION_CHECK"
)

// ReleaseInfo describes a published release
type ReleaseInfo struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

type versionCacheData struct {
	CacheTime   time.Time    `json:"cache_time"`
	ReleaseInfo *ReleaseInfo `json:"release_info,omitempty"`
}

// FetchLatestRelease returns the latest non-draft, non-prerelease release.
func (c *Client) FetchLatestRelease(ctx context.Context, owner, repo string) (*ReleaseInfo, error) {
	release, _, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	return &ReleaseInfo{
		TagName:     release.GetTagName(),
		Name:        release.GetName(),
		Prerelease:  release.GetPrerelease(),
		PublishedAt: release.GetPublishedAt().Time,
		HTMLURL:     release.GetHTMLURL(),
	}, nil
}

// VersionChecker compares the running version with the latest release,
// caching the answer for VersionCheckCacheTTL.
type VersionChecker struct {
	Client *Client
	// CacheDir holds the cache file; caching is off when empty
	CacheDir string
	// Now is time.Now when nil
	Now func() time.Time
}

// NewVersionChecker returns a checker that caches under the user cache dir.
func NewVersionChecker(client *Client) *VersionChecker {
	checker := &VersionChecker{Client: client}
	if dir, err := os.UserCacheDir(); err == nil {
		checker.CacheDir = filepath.Join(dir, "ota")
	}
	return checker
}

// Check returns the latest release and whether current is at least as new.
func (v *VersionChecker) Check(ctx context.Context, current string) (*ReleaseInfo, bool, error) {
	if os.Getenv(VersionCheckEnvVar) != "" {
		return nil, false, fmt.Errorf("version check disabled via %s", VersionCheckEnvVar)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	cachePath := ""
	if v.CacheDir != "" {
		cachePath = filepath.Join(v.CacheDir, VersionCheckCacheFile)
		if cached, err := readVersionCache(cachePath); err == nil &&
			cached.ReleaseInfo != nil && now().Sub(cached.CacheTime) < VersionCheckCacheTTL {
			return cached.ReleaseInfo, CompareVersions(current, cached.ReleaseInfo.TagName) >= 0, nil
		}
	}

	release, err := v.Client.FetchLatestRelease(ctx, RepoOwner, RepoName)
	if err != nil {
		return nil, false, err
	}

	if cachePath != "" {
		_ = writeVersionCache(cachePath, &versionCacheData{CacheTime: now(), ReleaseInfo: release})
	}
	return release, CompareVersions(current, release.TagName) >= 0, nil
}

// CompareVersions compares two versions with semver rules.
// Returns 1 if v1 > v2, -1 if v1 < v2, 0 if equal. "dev" is newer than any
// release; unparsable versions fall back to string comparison.
func CompareVersions(v1, v2 string) int {
	if v1 == "dev" && v2 == "dev" {
		return 0
	}
	if v1 == "dev" {
		return 1
	}
	if v2 == "dev" {
		return -1
	}

	sv1, err1 := semver.NewVersion(v1)
	sv2, err2 := semver.NewVersion(v2)
	if err1 != nil || err2 != nil {
		return strings.Compare(strings.TrimPrefix(v1, "v"), strings.TrimPrefix(v2, "v"))
	}
	return sv1.Compare(sv2)
}

func readVersionCache(cachePath string) (*versionCacheData, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}
	var cache versionCacheData
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func writeVersionCache(cachePath string, data *versionCacheData) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return err
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(cachePath, jsonData, 0644)
}
