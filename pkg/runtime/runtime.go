package runtime

import (
	"context"
	"io"

	"github.com/bollardhq/bollard/pkg/types"
)

// Runtime is the container runtime surface the orchestrator depends on.
// The production implementation drives Docker Engine; tests substitute
// fakes.
type Runtime interface {
	// Ping verifies the runtime is reachable. The planner calls this
	// first so an unreachable runtime aborts before any mutation.
	Ping(ctx context.Context) error

	// ListReplicas returns the running replicas of an application,
	// discovered by the {app}_web_{n} naming convention, ordered by
	// ordinal. Staging replicas left over from an interrupted rolling
	// restart are not included.
	ListReplicas(ctx context.Context, app *types.App) ([]*types.Replica, error)

	// StartReplica creates and starts a container under the given name,
	// binding hostPort to the app's container port. It returns the
	// container ID.
	StartReplica(ctx context.Context, app *types.App, name, image string, hostPort int) (string, error)

	// StopReplica stops and removes the named container. Stopping a
	// container that does not exist is not an error.
	StopReplica(ctx context.Context, name string) error

	// RunOneShot runs a command in a fresh container of the image (for
	// database migrations), waits for it to exit, and returns its
	// combined output. A nonzero exit status is an error carrying the
	// output.
	RunOneShot(ctx context.Context, app *types.App, image string, cmd []string) (string, error)

	// BuildImage builds an image tagged tag from the directory dir.
	BuildImage(ctx context.Context, dir, tag string) error

	// ReplicaLogs copies the named container's log stream to w.
	ReplicaLogs(ctx context.Context, name string, follow bool, w io.Writer) error

	// Close releases the runtime connection.
	Close() error
}
