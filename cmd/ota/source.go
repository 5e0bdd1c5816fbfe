package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/holon-run/ota/pkg/git"
	"github.com/holon-run/ota/pkg/github"
	holonlog "github.com/holon-run/ota/pkg/log"
)

// ciBranchResolver names the branch a CI job is building.
type ciBranchResolver interface {
	CIBranchName(ctx context.Context) (string, error)
}

// sourceControl answers publish.SourceControl from the local repository,
// falling back to the GitHub Actions environment on a detached HEAD.
type sourceControl struct {
	repo *git.Repository
	ci   ciBranchResolver
}

func newSourceControl(dir string) *sourceControl {
	sc := &sourceControl{}
	repo, err := git.Open(dir)
	if err != nil {
		holonlog.Debug("source control unavailable", "dir", dir, "error", err)
	} else {
		sc.repo = repo
	}

	gh, err := github.NewClientFromEnv()
	if err != nil {
		holonlog.Debug("github client unavailable", "error", err)
	} else {
		sc.ci = gh
	}
	return sc
}

func (s *sourceControl) BranchName(ctx context.Context) (string, error) {
	if s.repo != nil {
		branch, err := s.repo.CurrentBranch()
		if err == nil {
			return branch, nil
		}
		if !errors.Is(err, git.ErrDetachedHead) {
			return "", err
		}
		holonlog.Debug("HEAD is detached, trying the CI environment")
	}

	if s.ci == nil {
		return "", git.ErrNotRepository
	}
	branch, err := s.ci.CIBranchName(ctx)
	if err != nil {
		if errors.Is(err, github.ErrNoCIBranch) {
			return "", fmt.Errorf("could not determine the current branch; check out a branch or pass --branch: %w", err)
		}
		return "", err
	}
	return branch, nil
}

func (s *sourceControl) CommitHash(context.Context) (string, error) {
	if s.repo == nil {
		return "", git.ErrNotRepository
	}
	return s.repo.HeadSHA()
}

func (s *sourceControl) IsDirty(context.Context) (bool, error) {
	if s.repo == nil {
		return false, git.ErrNotRepository
	}
	return s.repo.IsDirty()
}

func (s *sourceControl) LastCommitMessage(context.Context) (string, error) {
	if s.repo == nil {
		return "", git.ErrNotRepository
	}
	return s.repo.HeadCommitSubject()
}
