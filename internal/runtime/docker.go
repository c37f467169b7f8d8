package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/stackwatchd/stackwatch/internal/health"
)

const defaultAPITimeout = 5 * time.Second

// dockerAPI defines the subset of Docker client operations used by
// DockerClient. The interface enables unit testing without a real Docker
// daemon by allowing mock implementations to be injected.
type dockerAPI interface {
	Ping(ctx context.Context) (dockertypes.Ping, error)
	ContainerInspect(ctx context.Context, containerID string) (dockertypes.ContainerJSON, error)
	ContainerRestart(ctx context.Context, containerID string, options containertypes.StopOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, config dockertypes.ExecConfig) (dockertypes.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config dockertypes.ExecStartCheck) (dockertypes.HijackedResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (dockertypes.ImageInspect, []byte, error)
	DistributionInspect(ctx context.Context, imageRef, encodedRegistryAuth string) (registrytypes.DistributionInspect, error)
	Close() error
}

// Ensure the official Docker client satisfies our interface at compile time.
var _ dockerAPI = (*client.Client)(nil)

// DockerClient implements Client using the official Docker Go SDK.
type DockerClient struct {
	api     dockerAPI
	timeout time.Duration
}

// NewDockerClient initializes a Docker client for the given API host.
// An empty host uses the SDK's environment defaults.
func NewDockerClient(host string, timeout time.Duration) (*DockerClient, error) {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	return &DockerClient{
		api:     api,
		timeout: timeout,
	}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *DockerClient) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.Ping(ctx)
	return err
}

// Status queries the running flag and raw health verdict for a container.
func (c *DockerClient) Status(ctx context.Context, containerID string) (health.ContainerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	inspect, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return health.ContainerStatus{}, fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	status := health.ContainerStatus{Verdict: health.VerdictNone}
	if inspect.State == nil {
		return status, nil
	}
	status.Running = inspect.State.Running

	if inspect.State.Health != nil {
		switch inspect.State.Health.Status {
		case dockertypes.Healthy:
			status.Verdict = health.VerdictHealthy
		case dockertypes.Unhealthy:
			status.Verdict = health.VerdictUnhealthy
		case dockertypes.Starting:
			status.Verdict = health.VerdictStarting
		}
	}

	return status, nil
}

// Restart issues a restart with the daemon's default stop timeout.
func (c *DockerClient) Restart(ctx context.Context, containerID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout+30*time.Second)
	defer cancel()

	if err := c.api.ContainerRestart(ctx, containerID, containertypes.StopOptions{}); err != nil {
		return fmt.Errorf("restart container %s: %w", containerID, err)
	}
	return nil
}

// Exec runs a command inside a container and returns its stdout. Stderr
// is folded into the error when the command produces no stdout.
func (c *DockerClient) Exec(ctx context.Context, containerID string, cmd []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.api.ContainerExecCreate(ctx, containerID, dockertypes.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("exec create in %s: %w", containerID, err)
	}

	attached, err := c.api.ContainerExecAttach(ctx, created.ID, dockertypes.ExecStartCheck{})
	if err != nil {
		return "", fmt.Errorf("exec attach in %s: %w", containerID, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return "", fmt.Errorf("exec read from %s: %w", containerID, err)
	}

	out := stdout.String()
	if out == "" && stderr.Len() > 0 {
		return "", fmt.Errorf("exec in %s: %s", containerID, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// LocalImageDigest returns the repo digest of the locally cached image.
func (c *DockerClient) LocalImageDigest(ctx context.Context, image string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	inspect, _, err := c.api.ImageInspectWithRaw(ctx, image)
	if err != nil {
		return "", fmt.Errorf("inspect image %s: %w", image, err)
	}
	for _, repoDigest := range inspect.RepoDigests {
		if digest, ok := splitRepoDigest(repoDigest); ok {
			return digest, nil
		}
	}
	return "", fmt.Errorf("image %s has no repo digest", image)
}

// RemoteImageDigest queries the registry for the image's current manifest
// digest without pulling layers.
func (c *DockerClient) RemoteImageDigest(ctx context.Context, image string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	inspect, err := c.api.DistributionInspect(ctx, image, "")
	if err != nil {
		return "", fmt.Errorf("distribution inspect %s: %w", image, err)
	}
	return inspect.Descriptor.Digest.String(), nil
}

// Close releases resources associated with the client.
func (c *DockerClient) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// splitRepoDigest extracts the digest from a "repo@sha256:..." reference.
func splitRepoDigest(repoDigest string) (string, bool) {
	idx := strings.Index(repoDigest, "@")
	if idx == -1 || idx == len(repoDigest)-1 {
		return "", false
	}
	return repoDigest[idx+1:], true
}
