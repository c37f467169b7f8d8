package runtime

import (
	"context"

	"github.com/stackwatchd/stackwatch/internal/health"
)

// Client defines the container runtime operations the monitor depends on.
// Any container orchestration API that can answer "is X running", "what
// is X's health verdict" and "restart X" satisfies this contract. The
// digest lookups support update detection without pulling images.
type Client interface {
	// Ping validates connectivity to the runtime daemon.
	Ping(ctx context.Context) error

	// Status returns the running flag and health verdict for a container.
	Status(ctx context.Context, containerID string) (health.ContainerStatus, error)

	// Restart issues a restart command against a container.
	Restart(ctx context.Context, containerID string) error

	// Exec runs a command inside a container and returns its combined output.
	Exec(ctx context.Context, containerID string, cmd []string) (string, error)

	// LocalImageDigest returns the digest of the locally cached image.
	LocalImageDigest(ctx context.Context, image string) (string, error)

	// RemoteImageDigest returns the registry's current digest for an image
	// reference without downloading layers.
	RemoteImageDigest(ctx context.Context, image string) (string, error)

	// Close releases resources associated with the client.
	Close() error
}
