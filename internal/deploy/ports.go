package deploy

import (
	"context"
	"time"

	"searchdock/internal/spec"
)

// ContainerRuntime abstracts the container engine operations the deploy
// engine needs. The Docker adapter in internal/docker is the real one;
// internal/adapter/fake provides the in-memory test double.
type ContainerRuntime interface {
	WaitReady(ctx context.Context) error
	ImagePull(ctx context.Context, image string) error

	VolumeEnsure(ctx context.Context, vol spec.VolumeSpec) error
	VolumeRemove(ctx context.Context, name string, force bool) error

	ContainerCreate(ctx context.Context, cfg ContainerCreateConfig) error
	ContainerStart(ctx context.Context, name string) error
	ContainerStop(ctx context.Context, name string) error
	ContainerRemove(ctx context.Context, name string, force bool) error
	ContainerInspect(ctx context.Context, name string) (ContainerInfo, error)
	ContainerList(ctx context.Context, labelFilter map[string]string) ([]ContainerListEntry, error)
	ContainerLogs(ctx context.Context, name string, lines int) (string, error)
}

// ContainerCreateConfig is everything the engine needs to realize one
// container from a service spec.
type ContainerCreateConfig struct {
	Name          string
	Image         string
	Cmd           []string
	Env           []string
	Mounts        []spec.Mount
	Ports         []spec.PortMapping
	Labels        map[string]string
	RestartPolicy string
	HealthCheck   *spec.HealthCheck
}

// ContainerInfo is the inspected state of one container.
type ContainerInfo struct {
	Exists  bool
	Running bool
	Image   string
	// Health is the engine's health status: "starting", "healthy",
	// "unhealthy", or empty when no health check is configured.
	Health string
}

// ContainerListEntry is one container as reported by a label-filtered list.
type ContainerListEntry struct {
	Name    string
	Image   string
	Running bool
	Labels  map[string]string
}

// ContainerStore persists one row per realized container.
type ContainerStore interface {
	InsertContainer(ctx context.Context, row ContainerRow) error
	UpdateContainer(ctx context.Context, row ContainerRow) error
	ListContainersByStack(ctx context.Context, stack string) ([]ContainerRow, error)
	DeleteContainer(ctx context.Context, id string) error
	DeleteContainersByStack(ctx context.Context, stack string) error
}

// DeploymentStore persists one row per apply attempt.
type DeploymentStore interface {
	InsertDeployment(ctx context.Context, row DeploymentRow) error
	UpdateDeployment(ctx context.Context, row DeploymentRow) error
	GetDeployment(ctx context.Context, id string) (DeploymentRow, bool, error)
	LatestDeployment(ctx context.Context, stack string) (DeploymentRow, bool, error)
	ListDeployments(ctx context.Context, stack string) ([]DeploymentRow, error)
}

// Stores groups persistence interfaces for convenience.
type Stores struct {
	Containers  ContainerStore
	Deployments DeploymentStore
}

// HealthChecker waits for a container to reach the engine's healthy state.
type HealthChecker interface {
	WaitHealthy(ctx context.Context, containerName string, hc spec.HealthCheck) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
