package publish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/assets"
	"github.com/holon-run/ota/pkg/config"
	"github.com/holon-run/ota/pkg/export"
	holonlog "github.com/holon-run/ota/pkg/log"
)

// MaxMessageLength is the longest update message the server stores.
const MaxMessageLength = 1024

// API is the remote service used for publishing.
type API interface {
	BranchEnsurer
	ChannelResolver
	BranchLister
	EnsureChannelExists(ctx context.Context, params api.ChannelLookupParams, branchID string) (bool, error)
	PublishUpdateGroups(ctx context.Context, inputs []api.PublishUpdateGroupInput) ([]api.UpdateFragment, error)
	UpdatesByGroup(ctx context.Context, group string) ([]api.UpdateFragment, error)
}

// Exporter produces the files to publish.
type Exporter interface {
	Export(ctx context.Context, opts export.Options) (*export.Result, error)
}

// Uploader stores exported files in asset storage.
type Uploader interface {
	Upload(ctx context.Context, files []export.Asset) (*assets.Result, error)
}

// ProjectLoader reads the app config of a project directory.
type ProjectLoader func(projectDir string) (*config.Project, error)

// Dependencies are the collaborators a Runner calls. LoadProject defaults to
// config.LoadProject; Source and Prompter may be nil.
type Dependencies struct {
	API         API
	LoadProject ProjectLoader
	Source      SourceControl
	Prompter    Prompter
	Exporter    Exporter
	Uploader    Uploader
}

// PublishOptions holds the inputs of `ota update publish`.
type PublishOptions struct {
	Flags       PublishFlags
	ProjectDir  string
	Platform    string
	InputDir    string
	SkipBundler bool
	ClearCache  bool
}

// Runner publishes updates.
type Runner struct {
	deps Dependencies
}

// NewRunner creates a Runner.
func NewRunner(deps Dependencies) *Runner {
	if deps.LoadProject == nil {
		deps.LoadProject = config.LoadProject
	}
	return &Runner{deps: deps}
}

func (r *Runner) resolver() *Resolver {
	return &Resolver{
		Branches: r.deps.API,
		Channels: r.deps.API,
		Lister:   r.deps.API,
		Source:   r.deps.Source,
		Prompter: r.deps.Prompter,
	}
}

// Publish exports the project, uploads its assets and publishes one update
// group per runtime version to the resolved branch.
func (r *Runner) Publish(ctx context.Context, opts PublishOptions) (*PublishResult, error) {
	target, err := Validate(opts.Flags)
	if err != nil {
		return nil, err
	}

	project, err := r.deps.LoadProject(opts.ProjectDir)
	if err != nil {
		return nil, err
	}
	holonlog.Debug("loaded project", "config", project.ConfigPath, "project_id", project.ProjectID)

	resolution, err := r.resolver().ResolveTarget(ctx, target, project.ProjectID)
	if err != nil {
		return nil, err
	}
	if resolution.CreatedBranch {
		holonlog.Info("created branch", "branch", resolution.BranchName)
	}

	message, err := r.resolveMessage(ctx, opts.Flags)
	if err != nil {
		return nil, err
	}

	if r.deps.Exporter == nil {
		return nil, errors.New("no exporter configured")
	}
	exported, err := r.deps.Exporter.Export(ctx, export.Options{
		ProjectDir:  project.Dir,
		InputDir:    opts.InputDir,
		Platform:    opts.Platform,
		SkipBundler: opts.SkipBundler,
		ClearCache:  opts.ClearCache,
	})
	if err != nil {
		return nil, err
	}

	platforms := selectPlatforms(exported, project.Platforms())
	if len(platforms) == 0 {
		return nil, fmt.Errorf("nothing to publish: the export contains none of the platforms %s",
			strings.Join(project.Platforms(), ", "))
	}

	uploadResult, err := r.upload(ctx, exported, platforms)
	if err != nil {
		return nil, err
	}

	inputs, err := buildUpdateGroups(project, exported, platforms, resolution.BranchID, message)
	if err != nil {
		return nil, err
	}
	r.addGitMetadata(ctx, inputs)

	holonlog.Info("publishing update", "branch", resolution.BranchName, "groups", len(inputs), "platforms", strings.Join(platforms, ","))
	updates, err := r.deps.API.PublishUpdateGroups(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to publish update: %w", err)
	}

	result := &PublishResult{
		Branch:        resolution.BranchName,
		BranchID:      resolution.BranchID,
		CreatedBranch: resolution.CreatedBranch,
		Channel:       resolution.ChannelName,
		Message:       message,
		Assets:        *uploadResult,
		Groups:        summarizeGroups(updates),
		Updates:       updates,
		PublishedAt:   time.Now(),
	}

	if _, ok := target.(ByChannel); ok {
		created, err := r.deps.API.EnsureChannelExists(ctx, api.ChannelLookupParams{
			AppID:       project.ProjectID,
			ChannelName: resolution.ChannelName,
		}, resolution.BranchID)
		if err != nil {
			return nil, fmt.Errorf("update published but failed to ensure channel %q: %w", resolution.ChannelName, err)
		}
		result.CreatedChannel = created
	}

	return result, nil
}

// resolveMessage uses --message, the last commit subject for --auto, or a
// prompt defaulting to the last commit subject.
func (r *Runner) resolveMessage(ctx context.Context, flags PublishFlags) (string, error) {
	message := flags.Message
	if message == "" {
		lastCommit := ""
		if r.deps.Source != nil {
			if msg, err := r.deps.Source.LastCommitMessage(ctx); err == nil {
				lastCommit = msg
			} else {
				holonlog.Debug("no last commit message", "error", err)
			}
		}

		switch {
		case flags.Auto:
			if lastCommit == "" {
				return "", errors.New("could not read the last commit message for --auto; pass --message")
			}
			message = lastCommit
		case !flags.NonInteractive && r.deps.Prompter != nil:
			prompted, err := r.deps.Prompter.InputMessage(ctx, lastCommit)
			if err != nil {
				return "", err
			}
			message = prompted
		default:
			return "", errNoMessage
		}
	}
	return TruncateMessage(message), nil
}

// TruncateMessage shortens messages longer than MaxMessageLength.
func TruncateMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= MaxMessageLength {
		return message
	}
	holonlog.Warn("update message truncated", "length", len(runes), "max", MaxMessageLength)
	return string(runes[:MaxMessageLength-3]) + "..."
}

func (r *Runner) upload(ctx context.Context, exported *export.Result, platforms []string) (*assets.Result, error) {
	if r.deps.Uploader == nil {
		return nil, errors.New("no asset storage configured")
	}

	result, err := r.deps.Uploader.Upload(ctx, exported.Assets(platforms...))
	if err != nil {
		return nil, fmt.Errorf("failed to upload assets: %w", err)
	}
	holonlog.Info("uploaded assets", "uploaded", result.Uploaded, "already_present", result.AlreadyPresent)
	return result, nil
}

func (r *Runner) addGitMetadata(ctx context.Context, inputs []api.PublishUpdateGroupInput) {
	if r.deps.Source == nil {
		return
	}
	hash, err := r.deps.Source.CommitHash(ctx)
	if err != nil {
		holonlog.Debug("no git commit for update metadata", "error", err)
		return
	}
	dirty, err := r.deps.Source.IsDirty(ctx)
	if err != nil {
		holonlog.Debug("could not read working tree status", "error", err)
	}
	for i := range inputs {
		inputs[i].GitCommitHash = hash
		inputs[i].IsGitWorkingTreeDirty = dirty
	}
}

// selectPlatforms returns the exported platforms the project targets.
func selectPlatforms(exported *export.Result, projectPlatforms []string) []string {
	allowed := make(map[string]bool, len(projectPlatforms))
	for _, p := range projectPlatforms {
		allowed[p] = true
	}
	var out []string
	for _, name := range exported.PlatformNames() {
		if allowed[name] {
			out = append(out, name)
		}
	}
	return out
}

// buildUpdateGroups creates one group input per runtime version, holding the
// manifests of every platform on that runtime version.
func buildUpdateGroups(project *config.Project, exported *export.Result, platforms []string, branchID, message string) ([]api.PublishUpdateGroupInput, error) {
	byRuntime := make(map[string]map[string]api.PartialManifest)
	for _, platform := range platforms {
		runtimeVersion, err := project.RuntimeVersion(platform)
		if err != nil {
			return nil, err
		}
		if byRuntime[runtimeVersion] == nil {
			byRuntime[runtimeVersion] = make(map[string]api.PartialManifest)
		}
		byRuntime[runtimeVersion][platform] = partialManifest(exported.Platforms[platform], project)
	}

	runtimeVersions := make([]string, 0, len(byRuntime))
	for rv := range byRuntime {
		runtimeVersions = append(runtimeVersions, rv)
	}
	sort.Strings(runtimeVersions)

	inputs := make([]api.PublishUpdateGroupInput, 0, len(runtimeVersions))
	for _, rv := range runtimeVersions {
		inputs = append(inputs, api.PublishUpdateGroupInput{
			BranchID:        branchID,
			UpdateInfoGroup: byRuntime[rv],
			RuntimeVersion:  rv,
			Message:         message,
		})
	}
	return inputs, nil
}

func partialManifest(p *export.PlatformExport, project *config.Project) api.PartialManifest {
	manifest := api.PartialManifest{
		LaunchAsset: manifestAsset(p.LaunchAsset),
		Assets:      make([]api.PartialManifestAsset, 0, len(p.Assets)),
	}
	for _, a := range p.Assets {
		manifest.Assets = append(manifest.Assets, manifestAsset(a))
	}
	if len(project.Raw) > 0 {
		manifest.Extra = map[string]interface{}{"expoClient": project.Raw}
	}
	return manifest
}

func manifestAsset(a export.Asset) api.PartialManifestAsset {
	ext := ""
	if a.Ext != "" {
		ext = "." + a.Ext
	}
	return api.PartialManifestAsset{
		FileSHA256:    a.SHA256,
		BundleKey:     a.BundleKey,
		ContentType:   a.ContentType,
		FileExtension: ext,
		StorageKey:    a.StorageKey,
	}
}
