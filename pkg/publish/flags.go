// Package publish decides where an update goes and publishes it: flag
// validation, target branch resolution, export, asset upload and the
// update group mutation.
package publish

// PublishFlags are the target and message flags of `ota update publish`.
type PublishFlags struct {
	Branch         string
	Channel        string
	Auto           bool
	NonInteractive bool
	Message        string

	// Deprecated, rejected with DeprecatedFlagError
	Republish bool
	Group     string
}

// Target is how the destination branch is chosen. Exactly one of ByBranch,
// ByChannel, ByAuto or ByPrompt.
type Target interface {
	isTarget()
}

// ByBranch publishes to a named branch.
type ByBranch struct{ Name string }

// ByChannel publishes to the branch a channel maps to.
type ByChannel struct{ Name string }

// ByAuto publishes to the branch named after the checked-out source branch.
type ByAuto struct{}

// ByPrompt asks the user for a branch.
type ByPrompt struct{}

func (ByBranch) isTarget()  {}
func (ByChannel) isTarget() {}
func (ByAuto) isTarget()    {}
func (ByPrompt) isTarget()  {}

// ParseTarget checks the target flags and returns the selected Target.
//
// Checks run in order: deprecated flags, --branch with --channel, --auto
// with either, and a missing target in non-interactive mode.
func ParseTarget(flags PublishFlags) (Target, error) {
	if flags.Republish || flags.Group != "" {
		return nil, &DeprecatedFlagError{}
	}
	if flags.Branch != "" && flags.Channel != "" {
		return nil, errBranchAndChannel
	}
	if flags.Auto && (flags.Branch != "" || flags.Channel != "") {
		return nil, errAutoWithTarget
	}

	switch {
	case flags.Channel != "":
		return ByChannel{Name: flags.Channel}, nil
	case flags.Branch != "":
		return ByBranch{Name: flags.Branch}, nil
	case flags.Auto:
		return ByAuto{}, nil
	case flags.NonInteractive:
		return nil, errNoTarget
	default:
		return ByPrompt{}, nil
	}
}

// Validate runs ParseTarget and then checks that a message can be found
// without prompting.
func Validate(flags PublishFlags) (Target, error) {
	target, err := ParseTarget(flags)
	if err != nil {
		return nil, err
	}
	if flags.NonInteractive && flags.Message == "" && !flags.Auto {
		return nil, errNoMessage
	}
	return target, nil
}

// TargetName describes a target for logs.
func TargetName(t Target) string {
	switch t := t.(type) {
	case ByBranch:
		return "branch " + t.Name
	case ByChannel:
		return "channel " + t.Name
	case ByAuto:
		return "auto"
	case ByPrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
