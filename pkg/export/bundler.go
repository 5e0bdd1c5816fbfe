package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	holonlog "github.com/holon-run/ota/pkg/log"
)

// DefaultBundlerCommand runs the expo CLI from the project's node_modules
const DefaultBundlerCommand = "npx"

// BundlerArgs returns the arguments for an "expo export" run, without the
// leading executable.
func BundlerArgs(req BundleRequest) []string {
	args := []string{"expo", "export", "--output-dir", req.OutputDir, "--dump-sourcemap"}
	if req.Platform != "" && req.Platform != PlatformAll {
		args = append(args, "--platform", req.Platform)
	}
	if req.ClearCache {
		args = append(args, "--clear")
	}
	return args
}

// LocalBundler runs the bundler on the host.
type LocalBundler struct {
	// Command is the executable, DefaultBundlerCommand when empty
	Command string
	// Output receives the bundler's stdout and stderr, os.Stderr when nil
	Output io.Writer
}

// Bundle runs "<command> expo export ..." in the project directory.
func (b *LocalBundler) Bundle(ctx context.Context, req BundleRequest) error {
	command := b.Command
	if command == "" {
		command = DefaultBundlerCommand
	}
	out := b.Output
	if out == nil {
		out = os.Stderr
	}

	args := BundlerArgs(req)
	holonlog.Debug("running bundler", "command", command, "args", strings.Join(args, " "), "dir", req.ProjectDir)

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = req.ProjectDir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(), "CI=1")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", command, strings.Join(args, " "), err)
	}
	return nil
}
