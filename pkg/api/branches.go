package api

import (
	"context"
	"fmt"

	holonlog "github.com/holon-run/ota/pkg/log"
)

const branchFields = `id name createdAt`

const branchByNameQuery = `query BranchByName($appId: String!, $name: String!) {
  app {
    byId(appId: $appId) {
      updateBranchByName(name: $name) { ` + branchFields + ` }
    }
  }
}`

const createBranchMutation = `mutation CreateBranch($appId: ID!, $name: String!) {
  updateBranch {
    createUpdateBranchForApp(appId: $appId, name: $name) { ` + branchFields + ` }
  }
}`

const listBranchesQuery = `query ListBranches($appId: String!, $offset: Int!, $limit: Int!) {
  app {
    byId(appId: $appId) {
      updateBranches(offset: $offset, limit: $limit) { ` + branchFields + ` }
    }
  }
}`

// DefaultListLimit is the page size used by list operations
const DefaultListLimit = 25

// BranchByName looks a branch up by name. It returns nil, nil when the
// branch does not exist.
func (c *Client) BranchByName(ctx context.Context, appID, name string) (*Branch, error) {
	var data struct {
		App struct {
			ByID struct {
				UpdateBranchByName *Branch `json:"updateBranchByName"`
			} `json:"byId"`
		} `json:"app"`
	}
	vars := map[string]interface{}{"appId": appID, "name": name}
	if err := c.Do(ctx, branchByNameQuery, vars, &data); err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up branch %q: %w", name, err)
	}
	return data.App.ByID.UpdateBranchByName, nil
}

// CreateBranch creates a branch on the app
func (c *Client) CreateBranch(ctx context.Context, appID, name string) (*Branch, error) {
	var data struct {
		UpdateBranch struct {
			CreateUpdateBranchForApp Branch `json:"createUpdateBranchForApp"`
		} `json:"updateBranch"`
	}
	vars := map[string]interface{}{"appId": appID, "name": name}
	if err := c.Do(ctx, createBranchMutation, vars, &data, NoRetry()); err != nil {
		return nil, fmt.Errorf("failed to create branch %q: %w", name, err)
	}
	branch := data.UpdateBranch.CreateUpdateBranchForApp
	if branch.ID == "" {
		return nil, fmt.Errorf("failed to create branch %q: response has no branch id", name)
	}
	return &branch, nil
}

// EnsureBranchExists returns the id of the named branch, creating it when
// absent. Repeated calls with the same params return the same id; the
// service is responsible for resolving concurrent first-time creation.
func (c *Client) EnsureBranchExists(ctx context.Context, params EnsureBranchParams) (BranchRef, error) {
	branch, err := c.BranchByName(ctx, params.AppID, params.BranchName)
	if err != nil {
		return BranchRef{}, err
	}
	if branch != nil {
		return BranchRef{BranchID: branch.ID}, nil
	}

	created, err := c.CreateBranch(ctx, params.AppID, params.BranchName)
	if err != nil {
		return BranchRef{}, err
	}
	holonlog.Debug("created branch", "app_id", params.AppID, "branch", params.BranchName, "branch_id", created.ID)
	return BranchRef{BranchID: created.ID, CreatedBranch: true}, nil
}

// ListBranches returns up to limit branches, most recent first
func (c *Client) ListBranches(ctx context.Context, appID string, limit int) ([]Branch, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var data struct {
		App struct {
			ByID struct {
				UpdateBranches []Branch `json:"updateBranches"`
			} `json:"byId"`
		} `json:"app"`
	}
	vars := map[string]interface{}{"appId": appID, "offset": 0, "limit": limit}
	if err := c.Do(ctx, listBranchesQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return data.App.ByID.UpdateBranches, nil
}
