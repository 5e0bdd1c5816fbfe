package api

import "time"

// Branch is a named, ordered sequence of updates for an app
type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// BranchRef is the result of ensuring a branch exists.
// CreatedBranch distinguishes a newly created branch from an existing one.
type BranchRef struct {
	BranchID      string `json:"branchId"`
	CreatedBranch bool   `json:"createdBranch"`
}

// EnsureBranchParams identifies a branch by app and name
type EnsureBranchParams struct {
	AppID      string
	BranchName string
}

// ChannelLookupParams identifies a channel by app and name
type ChannelLookupParams struct {
	AppID       string
	ChannelName string
}

// Channel maps a deployment channel to one or more branches
type Channel struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BranchMapping string   `json:"branchMapping"`
	Branches      []Branch `json:"updateBranches"`
}

// UpdateFragment is one platform-specific update record
type UpdateFragment struct {
	ID                    string    `json:"id"`
	Group                 string    `json:"group"`
	Message               string    `json:"message"`
	CreatedAt             time.Time `json:"createdAt"`
	RuntimeVersion        string    `json:"runtimeVersion"`
	Platform              string    `json:"platform"`
	ManifestPermalink     string    `json:"manifestPermalink"`
	GitCommitHash         string    `json:"gitCommitHash,omitempty"`
	IsGitWorkingTreeDirty bool      `json:"isGitWorkingTreeDirty"`
	Branch                struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"branch"`
	ManifestFragment string `json:"manifestFragment,omitempty"`
}

// PublishUpdateGroupInput creates one update group on a branch
type PublishUpdateGroupInput struct {
	BranchID              string                     `json:"branchId"`
	UpdateInfoGroup       map[string]PartialManifest `json:"updateInfoGroup"`
	RuntimeVersion        string                     `json:"runtimeVersion"`
	Message               string                     `json:"message,omitempty"`
	GitCommitHash         string                     `json:"gitCommitHash,omitempty"`
	IsGitWorkingTreeDirty bool                       `json:"isGitWorkingTreeDirty"`
}

// PartialManifest is the per-platform manifest sent with a publish
type PartialManifest struct {
	LaunchAsset PartialManifestAsset   `json:"launchAsset"`
	Assets      []PartialManifestAsset `json:"assets"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// PartialManifestAsset describes one uploaded file
type PartialManifestAsset struct {
	FileSHA256    string `json:"fileSHA256"`
	BundleKey     string `json:"bundleKey"`
	ContentType   string `json:"contentType"`
	FileExtension string `json:"fileExtension,omitempty"`
	StorageKey    string `json:"storageKey"`
}
