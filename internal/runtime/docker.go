package runtime

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// DockerRuntime executes reference and candidate solutions inside a
// short-lived, network-disabled Docker container. One container per run.
type DockerRuntime struct {
	client   *client.Client
	config   Config
	fixtures FixtureSource
	logger   *slog.Logger
}

// NewDockerRuntime creates a Docker-backed sandbox runtime.
func NewDockerRuntime(cfg Config, fixtures FixtureSource, logger *slog.Logger) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	// Verify Docker is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DockerRuntime{client: cli, config: cfg, fixtures: fixtures, logger: logger}, nil
}

// Run executes code against the registered fixture for the problem id.
func (r *DockerRuntime) Run(ctx context.Context, problemID, code string) (*domain.RunResult, error) {
	fixture, ok := r.fixtures.Fixture(problemID)
	if !ok {
		return &domain.RunResult{
			OK:        false,
			ErrorCode: ErrorCodeFixtureNotFound,
			Message:   fmt.Sprintf("no fixture registered for %s", problemID),
		}, nil
	}
	return r.RunAgainstFixture(ctx, problemID, code, fixture)
}

// RunAgainstFixture executes code against an explicit fixture.
func (r *DockerRuntime) RunAgainstFixture(ctx context.Context, problemID, code string, fixture *domain.Fixture) (*domain.RunResult, error) {
	fixtureJSON, err := marshalFixture(fixture)
	if err != nil {
		return nil, err
	}

	containerID, err := r.createContainer(ctx, problemID)
	if err != nil {
		return nil, err
	}
	defer r.destroyContainer(containerID)

	files := map[string]string{
		"solution.py":  code,
		"harness.py":   harnessSource,
		"fixture.json": fixtureJSON,
	}
	if err := r.copyFiles(ctx, containerID, files); err != nil {
		return nil, err
	}

	stdout, stderr, exitCode, err := r.exec(ctx, containerID, []string{"python3", "harness.py"})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.RunResult{
				OK:        false,
				ErrorCode: ErrorCodeSandboxTimeout,
				Message:   fmt.Sprintf("execution exceeded %s", r.config.Timeout),
			}, nil
		}
		return nil, err
	}

	if result, ok := parseVerdict(stdout); ok {
		return result, nil
	}

	r.logger.Warn("sandbox produced no verdict",
		"problem_id", problemID,
		"exit_code", exitCode,
	)

	return &domain.RunResult{
		OK:        false,
		Stdout:    stdout,
		ErrorCode: ErrorCodeBadOutput,
		Message:   firstLine(stderr),
	}, nil
}

// Close closes the Docker client.
func (r *DockerRuntime) Close() error {
	return r.client.Close()
}

func (r *DockerRuntime) createContainer(ctx context.Context, problemID string) (string, error) {
	if err := r.ensureImage(ctx, r.config.Image); err != nil {
		return "", fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           r.config.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      "/workspace",
		NetworkDisabled: r.config.NetworkOff,
		Tty:             false,
		Labels: map[string]string{
			"tensordrill.sandbox": "true",
			"tensordrill.problem": problemID,
		},
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(r.config.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(r.config.CPULimit * 1e9),
		},
	}

	resp, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = r.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	return resp.ID, nil
}

func (r *DockerRuntime) copyFiles(ctx context.Context, containerID string, files map[string]string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	return r.client.CopyToContainer(ctx, containerID, "/workspace", &buf, container.CopyToContainerOptions{})
}

func (r *DockerRuntime) exec(ctx context.Context, containerID string, cmd []string) (stdout, stderr string, exitCode int, err error) {
	execCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	execCfg := container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := r.client.ContainerExecCreate(execCtx, containerID, execCfg)
	if err != nil {
		return "", "", 0, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := r.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", "", 0, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	if _, err := io.Copy(&outBuf, attachResp.Reader); err != nil && execCtx.Err() != nil {
		return "", "", 0, execCtx.Err()
	}

	inspectResp, err := r.client.ContainerExecInspect(execCtx, execResp.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr = demuxOutput(outBuf.Bytes())
	return stdout, stderr, inspectResp.ExitCode, nil
}

func (r *DockerRuntime) destroyContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stopTimeout := 5
	_ = r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})
	if err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		r.logger.Warn("failed to remove sandbox container", "container_id", containerID, "error", err)
	}
}

func (r *DockerRuntime) ensureImage(ctx context.Context, img string) error {
	_, err := r.client.ImageInspect(ctx, img)
	if err == nil {
		return nil // Already present
	}

	reader, err := r.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Drain the reader to complete the pull
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Docker stream protocol uses 8-byte headers: [type][0][0][0][size1][size2][size3][size4]
// type: 1=stdout, 2=stderr
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}

	return outBuf.String(), errBuf.String()
}
