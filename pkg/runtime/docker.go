package runtime

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/bollardhq/bollard/pkg/types"
)

// stagingSuffix marks the temporary replica started during a rolling
// restart. Containers carrying it are excluded from topology discovery.
const stagingSuffix = "_stage"

// DockerRuntime implements Runtime against Docker Engine.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the Docker daemon. An empty host uses the
// environment defaults (DOCKER_HOST etc.).
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to docker: %w", err)
	}
	return &DockerRuntime{client: cli}, nil
}

// Close closes the Docker client connection.
func (r *DockerRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping verifies connectivity to the Docker daemon.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return nil
}

// ListReplicas discovers the running replica set from container names.
func (r *DockerRuntime) ListReplicas(ctx context.Context, app *types.App) ([]*types.Replica, error) {
	prefix := app.Name + "_web_"

	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var replicas []*types.Replica
	for _, c := range containers {
		name := containerName(c.Names)
		ordinal, ok := parseOrdinal(name, prefix)
		if !ok {
			continue
		}
		replicas = append(replicas, &types.Replica{
			AppName:     app.Name,
			Ordinal:     ordinal,
			HostPort:    app.HostPort(ordinal),
			ContainerID: c.ID,
			State:       types.ReplicaStateUnknown,
		})
	}

	sort.Slice(replicas, func(i, j int) bool {
		return replicas[i].Ordinal < replicas[j].Ordinal
	})
	return replicas, nil
}

// StartReplica creates and starts one replica container.
func (r *DockerRuntime) StartReplica(ctx context.Context, app *types.App, name, image string, hostPort int) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(app.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", app.ContainerPort, err)
	}

	cfg := &container.Config{
		Image:        image,
		Env:          app.Env,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels: map[string]string{
			"io.bollard.app": app.Name,
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{
				HostIP:   "127.0.0.1",
				HostPort: strconv.Itoa(hostPort),
			}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	created, err := r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", name, err)
	}
	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// Don't leave a created-but-never-started container behind.
		_ = r.client.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("failed to start container %s: %w", name, err)
	}
	return created.ID, nil
}

// StopReplica stops and removes the named container.
func (r *DockerRuntime) StopReplica(ctx context.Context, name string) error {
	if err := r.client.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", name, err)
	}
	if err := r.client.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	return nil
}

// RunOneShot runs a command to completion in a throwaway container.
func (r *DockerRuntime) RunOneShot(ctx context.Context, app *types.App, image string, cmd []string) (string, error) {
	cfg := &container.Config{
		Image: image,
		Env:   app.Env,
		Cmd:   cmd,
	}

	created, err := r.client.ContainerCreate(ctx, cfg, nil, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		_ = r.client.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return "", fmt.Errorf("failed waiting for container: %w", err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	output, err := r.containerOutput(ctx, created.ID)
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return output, fmt.Errorf("command %v exited with status %d: %s", cmd, exitCode, strings.TrimSpace(output))
	}
	return output, nil
}

// ReplicaLogs copies a container's demultiplexed log stream to w.
func (r *DockerRuntime) ReplicaLogs(ctx context.Context, name string, follow bool, w io.Writer) error {
	reader, err := r.client.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       "200",
	})
	if err != nil {
		return fmt.Errorf("failed to fetch logs for %s: %w", name, err)
	}
	defer reader.Close()

	_, err = stdcopy.StdCopy(w, w, reader)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to copy logs for %s: %w", name, err)
	}
	return nil
}

func (r *DockerRuntime) containerOutput(ctx context.Context, id string) (string, error) {
	reader, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch container output: %w", err)
	}
	defer reader.Close()

	var buf strings.Builder
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read container output: %w", err)
	}
	return buf.String(), nil
}

// containerName strips the leading slash the engine puts on names.
func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

// parseOrdinal extracts the replica ordinal from a container name matching
// prefix. Staging replicas and unrelated name matches are rejected.
func parseOrdinal(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(name, prefix)
	if strings.HasSuffix(rest, stagingSuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// StagingName returns the container name for an ordinal's temporary
// replacement during a rolling restart.
func StagingName(app *types.App, ordinal int) string {
	return app.ReplicaName(ordinal) + stagingSuffix
}
