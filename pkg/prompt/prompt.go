// Package prompt asks the user for publish targets and messages on a
// terminal using huh forms.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// newBranchOption is the select value that switches to free-text input.
const newBranchOption = "\x00new"

var runSelectPrompt = func(ctx context.Context, title string, options []huh.Option[string], selected *string) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(options...).
			Value(selected),
	)).RunWithContext(ctx)
}

var runInputPrompt = func(ctx context.Context, title, placeholder string, input *string) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Placeholder(placeholder).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" && placeholder == "" {
					return errors.New("value cannot be empty")
				}
				return nil
			}).
			Value(input),
	)).RunWithContext(ctx)
}

// HuhPrompter prompts through huh.
type HuhPrompter struct{}

// SelectBranch lets the user pick one of the existing branches or name a new
// one. With no existing branches it goes straight to the name input.
func (HuhPrompter) SelectBranch(ctx context.Context, existing []string) (string, error) {
	if len(existing) > 0 {
		options := make([]huh.Option[string], 0, len(existing)+1)
		for _, name := range existing {
			options = append(options, huh.NewOption(name, name))
		}
		options = append(options, huh.NewOption("[new branch]", newBranchOption))

		var selected string
		if err := runSelectPrompt(ctx, "Which branch would you like to publish on?", options, &selected); err != nil {
			return "", fmt.Errorf("prompt select branch: %w", err)
		}
		if selected != newBranchOption {
			return selected, nil
		}
	}

	var name string
	if err := runInputPrompt(ctx, "New branch name", "", &name); err != nil {
		return "", fmt.Errorf("prompt branch name: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("branch name cannot be empty")
	}
	return name, nil
}

// InputMessage asks for an update message. An empty answer keeps
// defaultMessage.
func (HuhPrompter) InputMessage(ctx context.Context, defaultMessage string) (string, error) {
	var message string
	if err := runInputPrompt(ctx, "Provide an update message", defaultMessage, &message); err != nil {
		return "", fmt.Errorf("prompt message: %w", err)
	}
	if message = strings.TrimSpace(message); message == "" {
		return defaultMessage, nil
	}
	return message, nil
}
