package github

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	holonlog "github.com/holon-run/ota/pkg/log"
)

// Environment variables set by GitHub Actions.
const (
	HeadRefEnv    = "GITHUB_HEAD_REF"
	RefEnv        = "GITHUB_REF"
	RepositoryEnv = "GITHUB_REPOSITORY"
)

// ErrNoCIBranch is returned when the CI environment does not identify a branch
var ErrNoCIBranch = errors.New("no branch found in the GitHub Actions environment")

// ParsePullRequestRef extracts the number from refs/pull/<n>/merge or
// refs/pull/<n>/head.
func ParsePullRequestRef(ref string) (int, bool) {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0, false
	}
	numStr, suffix, ok := strings.Cut(rest, "/")
	if !ok || (suffix != "merge" && suffix != "head") {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParseRepository splits "owner/repo".
func ParseRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", s)
	}
	return owner, repo, nil
}

// PullRequestHeadRef returns the head branch name of a pull request.
func (c *Client) PullRequestHeadRef(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}
	ref := pr.GetHead().GetRef()
	if ref == "" {
		return "", fmt.Errorf("pull request #%d has no head ref", number)
	}
	return ref, nil
}

// CIBranchName derives the branch being built in GitHub Actions:
// GITHUB_HEAD_REF for pull_request events, the pull request's head ref when
// GITHUB_REF points at a pull request merge ref, or the branch named by
// GITHUB_REF. It returns ErrNoCIBranch outside of GitHub Actions.
func (c *Client) CIBranchName(ctx context.Context) (string, error) {
	if head := os.Getenv(HeadRefEnv); head != "" {
		return head, nil
	}

	ref := os.Getenv(RefEnv)
	if ref == "" {
		return "", ErrNoCIBranch
	}
	if branch, ok := strings.CutPrefix(ref, "refs/heads/"); ok && branch != "" {
		return branch, nil
	}

	number, ok := ParsePullRequestRef(ref)
	if !ok {
		return "", fmt.Errorf("%w: unsupported ref %q", ErrNoCIBranch, ref)
	}
	owner, repo, err := ParseRepository(os.Getenv(RepositoryEnv))
	if err != nil {
		return "", err
	}
	holonlog.Debug("resolving pull request head ref", "repo", owner+"/"+repo, "number", number)
	return c.PullRequestHeadRef(ctx, owner, repo, number)
}
