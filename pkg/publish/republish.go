package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/holon-run/ota/pkg/api"
	holonlog "github.com/holon-run/ota/pkg/log"
)

// RepublishOptions holds the inputs of `ota update republish`.
type RepublishOptions struct {
	// Group is the update group to copy
	Group string
	// Branch is the destination; defaults to the group's branch
	Branch     string
	Message    string
	ProjectDir string
}

// Republish publishes the manifests of an existing update group again,
// on its own branch or on another one.
func (r *Runner) Republish(ctx context.Context, opts RepublishOptions) (*PublishResult, error) {
	if opts.Group == "" {
		return nil, &ValidationError{Message: "--group must be specified"}
	}

	updates, err := r.deps.API.UpdatesByGroup(ctx, opts.Group)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch update group %s: %w", opts.Group, err)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("update group %s has no updates", opts.Group)
	}
	source := updates[0]

	branchID := source.Branch.ID
	branchName := source.Branch.Name
	created := false
	if opts.Branch != "" && opts.Branch != source.Branch.Name {
		project, err := r.deps.LoadProject(opts.ProjectDir)
		if err != nil {
			return nil, err
		}
		ref, err := r.deps.API.EnsureBranchExists(ctx, api.EnsureBranchParams{
			AppID:      project.ProjectID,
			BranchName: opts.Branch,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to ensure branch %q exists: %w", opts.Branch, err)
		}
		branchID, branchName, created = ref.BranchID, opts.Branch, ref.CreatedBranch
	}

	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Republish %q - group: %s", source.Message, source.Group)
	}
	message = TruncateMessage(message)

	inputs, err := republishInputs(updates, branchID, message)
	if err != nil {
		return nil, err
	}

	holonlog.Info("republishing update group", "group", opts.Group, "branch", branchName)
	published, err := r.deps.API.PublishUpdateGroups(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to republish update group: %w", err)
	}

	return &PublishResult{
		Branch:        branchName,
		BranchID:      branchID,
		CreatedBranch: created,
		Message:       message,
		Groups:        summarizeGroups(published),
		Updates:       published,
		PublishedAt:   time.Now(),
	}, nil
}

// republishInputs rebuilds group inputs from the stored manifest fragments,
// one per runtime version.
func republishInputs(updates []api.UpdateFragment, branchID, message string) ([]api.PublishUpdateGroupInput, error) {
	byRuntime := make(map[string]*api.PublishUpdateGroupInput)
	for _, u := range updates {
		if u.ManifestFragment == "" {
			return nil, fmt.Errorf("update %s has no manifest to republish", u.ID)
		}
		var manifest api.PartialManifest
		if err := json.Unmarshal([]byte(u.ManifestFragment), &manifest); err != nil {
			return nil, fmt.Errorf("failed to decode manifest of update %s: %w", u.ID, err)
		}

		input, ok := byRuntime[u.RuntimeVersion]
		if !ok {
			input = &api.PublishUpdateGroupInput{
				BranchID:              branchID,
				UpdateInfoGroup:       make(map[string]api.PartialManifest),
				RuntimeVersion:        u.RuntimeVersion,
				Message:               message,
				GitCommitHash:         u.GitCommitHash,
				IsGitWorkingTreeDirty: u.IsGitWorkingTreeDirty,
			}
			byRuntime[u.RuntimeVersion] = input
		}
		input.UpdateInfoGroup[u.Platform] = manifest
	}

	runtimeVersions := make([]string, 0, len(byRuntime))
	for rv := range byRuntime {
		runtimeVersions = append(runtimeVersions, rv)
	}
	sort.Strings(runtimeVersions)

	inputs := make([]api.PublishUpdateGroupInput, 0, len(runtimeVersions))
	for _, rv := range runtimeVersions {
		inputs = append(inputs, *byRuntime[rv])
	}
	return inputs, nil
}
