package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/holon-run/ota/pkg/api"
	holonlog "github.com/holon-run/ota/pkg/log"
)

// BranchEnsurer finds or creates a branch.
type BranchEnsurer interface {
	EnsureBranchExists(ctx context.Context, params api.EnsureBranchParams) (api.BranchRef, error)
}

// ChannelResolver maps a channel to the name of its branch.
type ChannelResolver interface {
	BranchNameFromChannelName(ctx context.Context, params api.ChannelLookupParams) (string, error)
}

// BranchLister lists the branches of an app.
type BranchLister interface {
	ListBranches(ctx context.Context, appID string, limit int) ([]api.Branch, error)
}

// SourceControl reads the state of the working copy.
type SourceControl interface {
	BranchName(ctx context.Context) (string, error)
	CommitHash(ctx context.Context) (string, error)
	IsDirty(ctx context.Context) (bool, error)
	LastCommitMessage(ctx context.Context) (string, error)
}

// Prompter asks the user for missing input.
type Prompter interface {
	SelectBranch(ctx context.Context, existing []string) (string, error)
	InputMessage(ctx context.Context, defaultMessage string) (string, error)
}

// Resolution is the branch an update will be published to.
type Resolution struct {
	api.BranchRef
	BranchName string
	// ChannelName is set when the branch was derived from a channel
	ChannelName string
	Target      Target
}

// Resolver turns a Target into an existing branch.
type Resolver struct {
	Branches BranchEnsurer
	Channels ChannelResolver
	Lister   BranchLister
	Source   SourceControl
	Prompter Prompter
}

// Resolve validates flags and resolves the target branch for appID.
// Invalid flags fail before any collaborator is called.
func (r *Resolver) Resolve(ctx context.Context, flags PublishFlags, appID string) (*Resolution, error) {
	target, err := ParseTarget(flags)
	if err != nil {
		return nil, err
	}
	return r.ResolveTarget(ctx, target, appID)
}

// ResolveTarget resolves an already validated Target.
func (r *Resolver) ResolveTarget(ctx context.Context, target Target, appID string) (*Resolution, error) {
	if appID == "" {
		return nil, errors.New("project id is required to resolve a branch")
	}

	res := &Resolution{Target: target}
	switch t := target.(type) {
	case ByChannel:
		if r.Channels == nil {
			return nil, errors.New("no channel resolver configured")
		}
		name, err := r.Channels.BranchNameFromChannelName(ctx, api.ChannelLookupParams{
			AppID:       appID,
			ChannelName: t.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve branch for channel %q: %w", t.Name, err)
		}
		res.BranchName = name
		res.ChannelName = t.Name

	case ByBranch:
		res.BranchName = t.Name

	case ByAuto:
		if r.Source == nil {
			return nil, errors.New("--auto requires a git repository")
		}
		name, err := r.Source.BranchName(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to determine branch from source control: %w", err)
		}
		res.BranchName = name

	case ByPrompt:
		name, err := r.promptBranch(ctx, appID)
		if err != nil {
			return nil, err
		}
		res.BranchName = name

	default:
		return nil, fmt.Errorf("unsupported target %T", target)
	}

	if res.BranchName == "" {
		return nil, fmt.Errorf("resolved an empty branch name for %s", TargetName(target))
	}

	ref, err := r.Branches.EnsureBranchExists(ctx, api.EnsureBranchParams{
		AppID:      appID,
		BranchName: res.BranchName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure branch %q exists: %w", res.BranchName, err)
	}
	res.BranchRef = ref

	holonlog.Debug("resolved branch", "target", TargetName(target), "branch", res.BranchName,
		"branch_id", ref.BranchID, "created", ref.CreatedBranch)
	return res, nil
}

func (r *Resolver) promptBranch(ctx context.Context, appID string) (string, error) {
	if r.Prompter == nil {
		return "", errNoTarget
	}

	var existing []string
	if r.Lister != nil {
		branches, err := r.Lister.ListBranches(ctx, appID, api.DefaultListLimit)
		if err != nil {
			return "", fmt.Errorf("failed to list branches: %w", err)
		}
		for _, b := range branches {
			existing = append(existing, b.Name)
		}
	}
	return r.Prompter.SelectBranch(ctx, existing)
}
