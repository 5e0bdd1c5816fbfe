package api

import (
	"context"
	"encoding/json"
	"fmt"

	holonlog "github.com/holon-run/ota/pkg/log"
)

const channelByNameQuery = `query ChannelByName($appId: String!, $name: String!) {
  app {
    byId(appId: $appId) {
      updateChannelByName(name: $name) {
        id
        name
        branchMapping
        updateBranches(offset: 0, limit: 5) { id name createdAt }
      }
    }
  }
}`

const createChannelMutation = `mutation CreateChannel($appId: ID!, $name: String!, $branchMapping: String!) {
  updateChannel {
    createUpdateChannelForApp(appId: $appId, name: $name, branchMapping: $branchMapping) {
      id
      name
      branchMapping
    }
  }
}`

// BranchMapping is the decoded form of Channel.BranchMapping
type BranchMapping struct {
	Version int                 `json:"version"`
	Data    []BranchMappingRule `json:"data"`
}

// BranchMappingRule routes a channel to a branch when Logic matches
type BranchMappingRule struct {
	BranchID string      `json:"branchId"`
	Logic    interface{} `json:"branchMappingLogic"`
}

// SingleBranchMapping returns the mapping that routes every request to branchID
func SingleBranchMapping(branchID string) BranchMapping {
	return BranchMapping{
		Version: 0,
		Data:    []BranchMappingRule{{BranchID: branchID, Logic: "true"}},
	}
}

// ParseBranchMapping decodes a channel's branch mapping. An empty string
// decodes to an empty mapping.
func ParseBranchMapping(raw string) (BranchMapping, error) {
	var mapping BranchMapping
	if raw == "" {
		return mapping, nil
	}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return mapping, fmt.Errorf("invalid branch mapping: %w", err)
	}
	return mapping, nil
}

// ChannelByName looks a channel up by name. It returns nil, nil when the
// channel does not exist.
func (c *Client) ChannelByName(ctx context.Context, appID, name string) (*Channel, error) {
	var data struct {
		App struct {
			ByID struct {
				UpdateChannelByName *Channel `json:"updateChannelByName"`
			} `json:"byId"`
		} `json:"app"`
	}
	vars := map[string]interface{}{"appId": appID, "name": name}
	if err := c.Do(ctx, channelByNameQuery, vars, &data); err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up channel %q: %w", name, err)
	}
	return data.App.ByID.UpdateChannelByName, nil
}

// CreateChannel creates a channel that routes to branchID
func (c *Client) CreateChannel(ctx context.Context, appID, name, branchID string) (*Channel, error) {
	mapping, err := json.Marshal(SingleBranchMapping(branchID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode branch mapping: %w", err)
	}

	var data struct {
		UpdateChannel struct {
			CreateUpdateChannelForApp Channel `json:"createUpdateChannelForApp"`
		} `json:"updateChannel"`
	}
	vars := map[string]interface{}{
		"appId":         appID,
		"name":          name,
		"branchMapping": string(mapping),
	}
	if err := c.Do(ctx, createChannelMutation, vars, &data, NoRetry()); err != nil {
		return nil, fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	channel := data.UpdateChannel.CreateUpdateChannelForApp
	return &channel, nil
}

// BranchNameFromChannelName returns the name of the branch a channel routes
// to. When the channel does not exist, or maps to no known branch, the
// channel name itself is used as the branch name.
func (c *Client) BranchNameFromChannelName(ctx context.Context, params ChannelLookupParams) (string, error) {
	channel, err := c.ChannelByName(ctx, params.AppID, params.ChannelName)
	if err != nil {
		return "", err
	}
	if channel == nil {
		holonlog.Debug("channel not found, using channel name as branch", "channel", params.ChannelName)
		return params.ChannelName, nil
	}

	mapping, err := ParseBranchMapping(channel.BranchMapping)
	if err != nil {
		return "", fmt.Errorf("channel %q: %w", params.ChannelName, err)
	}
	for _, rule := range mapping.Data {
		for _, branch := range channel.Branches {
			if branch.ID == rule.BranchID {
				return branch.Name, nil
			}
		}
	}
	if len(mapping.Data) == 0 && len(channel.Branches) == 1 {
		return channel.Branches[0].Name, nil
	}

	holonlog.Debug("channel maps no known branch, using channel name as branch", "channel", params.ChannelName)
	return params.ChannelName, nil
}

// EnsureChannelExists creates the channel pointing at branchID when it does
// not exist yet. It reports whether a channel was created. An existing
// channel is left untouched.
func (c *Client) EnsureChannelExists(ctx context.Context, params ChannelLookupParams, branchID string) (bool, error) {
	channel, err := c.ChannelByName(ctx, params.AppID, params.ChannelName)
	if err != nil {
		return false, err
	}
	if channel != nil {
		return false, nil
	}
	if _, err := c.CreateChannel(ctx, params.AppID, params.ChannelName, branchID); err != nil {
		return false, err
	}
	return true, nil
}
