// Package git answers read-only questions about the project's repository:
// the current branch, the HEAD commit and whether the working tree is dirty.
// It is backed by go-git, so no git binary is required.
package git

import (
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotRepository is returned when no repository contains the directory
	ErrNotRepository = errors.New("not a git repository")

	// ErrDetachedHead is returned by CurrentBranch when HEAD is not a branch
	ErrDetachedHead = errors.New("HEAD is detached")
)

// Repository is an opened git repository.
type Repository struct {
	// Dir is the directory the repository was opened from
	Dir string

	repo *gogit.Repository
}

// Open opens the repository containing dir, searching parent directories.
func Open(dir string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotRepository)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return &Repository{Dir: dir, repo: repo}, nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", ErrDetachedHead
	}
	target := head.Target()
	if !target.IsBranch() {
		return "", ErrDetachedHead
	}
	return target.Short(), nil
}

// HeadSHA returns the full hash of the HEAD commit.
func (r *Repository) HeadSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// HeadCommitMessage returns the full message of the HEAD commit.
func (r *Repository) HeadCommitMessage() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	return commit.Message, nil
}

// HeadCommitSubject returns the first line of the HEAD commit message.
func (r *Repository) HeadCommitSubject() (string, error) {
	message, err := r.HeadCommitMessage()
	if err != nil {
		return "", err
	}
	return Subject(message), nil
}

// IsDirty reports whether the working tree has uncommitted or untracked changes.
func (r *Repository) IsDirty() (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// Subject returns the first non-empty line of a commit message.
func Subject(message string) string {
	for _, line := range strings.Split(message, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
