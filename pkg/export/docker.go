package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	holonlog "github.com/holon-run/ota/pkg/log"
)

// ContainerProjectDir is where the project is mounted inside the bundler container
const ContainerProjectDir = "/ota/project"

// DockerBundler runs the bundler inside a container, for builds that must
// not depend on the host's node toolchain.
type DockerBundler struct {
	cli *client.Client

	// Image is the bundler image, e.g. node:20
	Image string
	// Env is passed to the container in addition to the host UID/GID
	Env map[string]string
	// Output receives the container logs, os.Stderr when nil
	Output io.Writer
}

// NewDockerBundler connects to the Docker daemon from the environment.
func NewDockerBundler(imageRef string) (*DockerBundler, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerBundler{cli: cli, Image: imageRef}, nil
}

// Bundle runs "npx expo export ..." in a container with the project
// bind-mounted at ContainerProjectDir.
func (b *DockerBundler) Bundle(ctx context.Context, req BundleRequest) error {
	if b.Image == "" {
		return fmt.Errorf("bundler image is required")
	}
	out := b.Output
	if out == nil {
		out = os.Stderr
	}

	if _, err := b.cli.ImageInspect(ctx, b.Image); err != nil {
		holonlog.Info("bundler image not found locally, pulling", "image", b.Image)
		reader, err := b.cli.ImagePull(ctx, b.Image, image.PullOptions{})
		if err != nil {
			return fmt.Errorf("failed to pull image %s: %w", b.Image, err)
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
	}

	cmd := append([]string{DefaultBundlerCommand}, BundlerArgs(req)...)
	resp, err := b.cli.ContainerCreate(ctx, &container.Config{
		Image:      b.Image,
		Cmd:        cmd,
		Env:        BuildContainerEnv(b.Env, os.Getuid(), os.Getgid()),
		WorkingDir: ContainerProjectDir,
		Tty:        false,
	}, &container.HostConfig{
		Mounts:     BuildContainerMounts(req.ProjectDir),
		AutoRemove: true,
	}, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	holonlog.Debug("starting bundler container", "id", shortID(resp.ID), "image", b.Image)
	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	logs, err := b.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err == nil {
		defer logs.Close()
		go func() {
			_, _ = stdcopy.StdCopy(out, out, logs)
		}()
	}

	statusCh, errCh := b.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("container wait error: %w", err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("bundler container failed with exit code %d", status.StatusCode)
		}
	}
	return nil
}

// BuildContainerMounts returns the project bind mount.
func BuildContainerMounts(projectDir string) []mount.Mount {
	return []mount.Mount{
		{
			Type:   mount.TypeBind,
			Source: projectDir,
			Target: ContainerProjectDir,
		},
	}
}

// BuildContainerEnv assembles the container environment. Entries are sorted
// so the result is deterministic.
func BuildContainerEnv(userEnv map[string]string, hostUID, hostGID int) []string {
	env := make([]string, 0, len(userEnv)+3)
	for k, v := range userEnv {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	env = append(env, fmt.Sprintf("HOST_UID=%d", hostUID))
	env = append(env, fmt.Sprintf("HOST_GID=%d", hostGID))
	env = append(env, "CI=1")
	return env
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
