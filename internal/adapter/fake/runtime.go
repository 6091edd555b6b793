package fake

import (
	"context"
	"fmt"
	"sync"

	"searchdock/internal/deploy"
	"searchdock/internal/spec"
)

var _ deploy.ContainerRuntime = (*ContainerRuntime)(nil)

type containerState struct {
	Config  deploy.ContainerCreateConfig
	Running bool
	Health  string
}

// ContainerRuntime is an in-memory implementation of deploy.ContainerRuntime.
// Created containers report healthy once started unless HealthOnStart is
// overridden.
type ContainerRuntime struct {
	CallRecorder
	mu         sync.Mutex
	ready      bool
	containers map[string]*containerState
	volumes    map[string]spec.VolumeSpec
	images     map[string]bool

	// HealthOnStart is the health status assigned when a container with a
	// health check starts. Defaults to "healthy".
	HealthOnStart string

	WaitReadyErr        func(ctx context.Context) error
	ImagePullErr        func(ctx context.Context, image string) error
	VolumeEnsureErr     func(ctx context.Context, vol spec.VolumeSpec) error
	VolumeRemoveErr     func(ctx context.Context, name string, force bool) error
	ContainerCreateErr  func(ctx context.Context, cfg deploy.ContainerCreateConfig) error
	ContainerStartErr   func(ctx context.Context, name string) error
	ContainerStopErr    func(ctx context.Context, name string) error
	ContainerRemoveErr  func(ctx context.Context, name string, force bool) error
	ContainerInspectErr func(ctx context.Context, name string) error
	ContainerListErr    func(ctx context.Context, labelFilter map[string]string) error
	ContainerLogsErr    func(ctx context.Context, name string, lines int) error
}

// NewContainerRuntime creates a ContainerRuntime that is ready by default.
func NewContainerRuntime() *ContainerRuntime {
	return &ContainerRuntime{
		ready:         true,
		containers:    make(map[string]*containerState),
		volumes:       make(map[string]spec.VolumeSpec),
		images:        make(map[string]bool),
		HealthOnStart: "healthy",
	}
}

func (r *ContainerRuntime) WaitReady(ctx context.Context) error {
	r.record("WaitReady")
	if r.WaitReadyErr != nil {
		if err := r.WaitReadyErr(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return fmt.Errorf("container runtime not ready")
	}
	return nil
}

func (r *ContainerRuntime) ImagePull(ctx context.Context, image string) error {
	r.record("ImagePull", image)
	if r.ImagePullErr != nil {
		if err := r.ImagePullErr(ctx, image); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[image] = true
	return nil
}

func (r *ContainerRuntime) VolumeEnsure(ctx context.Context, vol spec.VolumeSpec) error {
	r.record("VolumeEnsure", vol.Name)
	if r.VolumeEnsureErr != nil {
		if err := r.VolumeEnsureErr(ctx, vol); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.volumes[vol.Name]; !exists {
		r.volumes[vol.Name] = vol
	}
	return nil
}

func (r *ContainerRuntime) VolumeRemove(ctx context.Context, name string, force bool) error {
	r.record("VolumeRemove", name, force)
	if r.VolumeRemoveErr != nil {
		if err := r.VolumeRemoveErr(ctx, name, force); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volumes, name)
	return nil
}

func (r *ContainerRuntime) ContainerCreate(ctx context.Context, cfg deploy.ContainerCreateConfig) error {
	r.record("ContainerCreate", cfg.Name)
	if r.ContainerCreateErr != nil {
		if err := r.ContainerCreateErr(ctx, cfg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.containers[cfg.Name]; exists {
		return fmt.Errorf("container %q already exists", cfg.Name)
	}
	r.containers[cfg.Name] = &containerState{Config: cfg}
	return nil
}

func (r *ContainerRuntime) ContainerStart(ctx context.Context, name string) error {
	r.record("ContainerStart", name)
	if r.ContainerStartErr != nil {
		if err := r.ContainerStartErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return fmt.Errorf("container %q not found", name)
	}
	cs.Running = true
	if cs.Config.HealthCheck != nil {
		cs.Health = r.HealthOnStart
	}
	return nil
}

func (r *ContainerRuntime) ContainerStop(ctx context.Context, name string) error {
	r.record("ContainerStop", name)
	if r.ContainerStopErr != nil {
		if err := r.ContainerStopErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.Running = false
	}
	return nil
}

func (r *ContainerRuntime) ContainerRemove(ctx context.Context, name string, force bool) error {
	r.record("ContainerRemove", name, force)
	if r.ContainerRemoveErr != nil {
		if err := r.ContainerRemoveErr(ctx, name, force); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.containers, name)
	return nil
}

func (r *ContainerRuntime) ContainerInspect(ctx context.Context, name string) (deploy.ContainerInfo, error) {
	r.record("ContainerInspect", name)
	if r.ContainerInspectErr != nil {
		if err := r.ContainerInspectErr(ctx, name); err != nil {
			return deploy.ContainerInfo{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return deploy.ContainerInfo{Exists: false}, nil
	}
	return deploy.ContainerInfo{
		Exists:  true,
		Running: cs.Running,
		Image:   cs.Config.Image,
		Health:  cs.Health,
	}, nil
}

func (r *ContainerRuntime) ContainerList(ctx context.Context, labelFilter map[string]string) ([]deploy.ContainerListEntry, error) {
	r.record("ContainerList")
	if r.ContainerListErr != nil {
		if err := r.ContainerListErr(ctx, labelFilter); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]deploy.ContainerListEntry, 0, len(r.containers))
	for name, cs := range r.containers {
		if !labelsMatch(cs.Config.Labels, labelFilter) {
			continue
		}
		labels := make(map[string]string, len(cs.Config.Labels))
		for key, value := range cs.Config.Labels {
			labels[key] = value
		}
		out = append(out, deploy.ContainerListEntry{
			Name:    name,
			Image:   cs.Config.Image,
			Running: cs.Running,
			Labels:  labels,
		})
	}
	return out, nil
}

func (r *ContainerRuntime) ContainerLogs(ctx context.Context, name string, lines int) (string, error) {
	r.record("ContainerLogs", name, lines)
	if r.ContainerLogsErr != nil {
		if err := r.ContainerLogsErr(ctx, name, lines); err != nil {
			return "", err
		}
	}
	return "", nil
}

// SetHealth overrides the health status of an existing container.
func (r *ContainerRuntime) SetHealth(name, health string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.Health = health
	}
}

// SetRunning overrides the running flag of an existing container.
func (r *ContainerRuntime) SetRunning(name string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.Running = running
	}
}

// ContainerConfig returns the create config of a container, if present.
func (r *ContainerRuntime) ContainerConfig(name string) (deploy.ContainerCreateConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.containers[name]
	if !ok {
		return deploy.ContainerCreateConfig{}, false
	}
	return cs.Config, true
}

// VolumeExists reports whether a volume has been ensured.
func (r *ContainerRuntime) VolumeExists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.volumes[name]
	return ok
}

func labelsMatch(labels, filter map[string]string) bool {
	for key, value := range filter {
		if labels[key] != value {
			return false
		}
	}
	return true
}
