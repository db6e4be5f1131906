package container

import (
	"context"
	"sync"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// Inspector is the part of the Docker API client the resolver depends on.
type Inspector interface {
	ContainerInspect(ctx context.Context, containerID string) (dockertypes.ContainerJSON, error)
}

var (
	dockerOnce   sync.Once
	dockerClient Inspector
	dockerErr    error
)

// newDockerClient builds the client from the DOCKER_* environment.
var newDockerClient = func() (Inspector, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// DockerClient returns the process-wide Docker client. It is created on first
// use from the DOCKER_* environment and lives until the process exits; a
// creation error is remembered and returned on every call.
func DockerClient() (Inspector, error) {
	dockerOnce.Do(func() {
		dockerClient, dockerErr = newDockerClient()
	})
	if dockerErr != nil {
		return nil, dockerErr
	}
	return dockerClient, nil
}
