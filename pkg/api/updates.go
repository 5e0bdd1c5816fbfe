package api

import (
	"context"
	"fmt"
)

const updateFields = `
  id
  group
  message
  createdAt
  runtimeVersion
  platform
  manifestPermalink
  gitCommitHash
  isGitWorkingTreeDirty
  manifestFragment
  branch { id name }
`

const publishUpdateGroupsMutation = `mutation PublishUpdateGroups($publishUpdateGroupsInput: [PublishUpdateGroupInput!]!) {
  updateBranch {
    publishUpdateGroups(publishUpdateGroupsInput: $publishUpdateGroupsInput) {` + updateFields + `}
  }
}`

const updatesByGroupQuery = `query UpdatesByGroup($group: ID!) {
  updatesByGroup(group: $group) {` + updateFields + `}
}`

const listUpdatesQuery = `query ListUpdates($appId: String!, $branchName: String!, $offset: Int!, $limit: Int!) {
  app {
    byId(appId: $appId) {
      updateBranchByName(name: $branchName) {
        updates(offset: $offset, limit: $limit) {` + updateFields + `}
      }
    }
  }
}`

// PublishUpdateGroups publishes one update group per input in a single
// mutation and returns the created updates.
func (c *Client) PublishUpdateGroups(ctx context.Context, inputs []PublishUpdateGroupInput) ([]UpdateFragment, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no update groups to publish")
	}
	var data struct {
		UpdateBranch struct {
			PublishUpdateGroups []UpdateFragment `json:"publishUpdateGroups"`
		} `json:"updateBranch"`
	}
	vars := map[string]interface{}{"publishUpdateGroupsInput": inputs}
	if err := c.Do(ctx, publishUpdateGroupsMutation, vars, &data, NoRetry()); err != nil {
		return nil, fmt.Errorf("failed to publish update groups: %w", err)
	}
	return data.UpdateBranch.PublishUpdateGroups, nil
}

// UpdatesByGroup returns the platform updates that make up group
func (c *Client) UpdatesByGroup(ctx context.Context, group string) ([]UpdateFragment, error) {
	var data struct {
		UpdatesByGroup []UpdateFragment `json:"updatesByGroup"`
	}
	if err := c.Do(ctx, updatesByGroupQuery, map[string]interface{}{"group": group}, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch update group %q: %w", group, err)
	}
	if len(data.UpdatesByGroup) == 0 {
		return nil, fmt.Errorf("update group %q not found", group)
	}
	return data.UpdatesByGroup, nil
}

// ListUpdates returns up to limit updates on a branch, most recent first.
// A missing branch yields an empty list.
func (c *Client) ListUpdates(ctx context.Context, appID, branchName string, limit int) ([]UpdateFragment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var data struct {
		App struct {
			ByID struct {
				UpdateBranchByName *struct {
					Updates []UpdateFragment `json:"updates"`
				} `json:"updateBranchByName"`
			} `json:"byId"`
		} `json:"app"`
	}
	vars := map[string]interface{}{
		"appId":      appID,
		"branchName": branchName,
		"offset":     0,
		"limit":      limit,
	}
	if err := c.Do(ctx, listUpdatesQuery, vars, &data); err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}
	if data.App.ByID.UpdateBranchByName == nil {
		return nil, nil
	}
	return data.App.ByID.UpdateBranchByName.Updates, nil
}
