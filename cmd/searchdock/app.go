package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"searchdock/config"
	"searchdock/internal/adapter/sqlite"
	"searchdock/internal/deploy"
	"searchdock/internal/docker"
	"searchdock/internal/spec"
)

const engineReadyTimeout = 10 * time.Second

// globalFlags carries the persistent stack selection flags. Empty values
// fall back to the config file, then to built-in defaults.
type globalFlags struct {
	stackFile  string
	stackName  string
	statePath  string
	dockerHost string
}

func (f *globalFlags) resolve() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.stackFile != "" {
		cfg.StackFile = f.stackFile
	}
	if f.statePath != "" {
		cfg.StatePath = f.statePath
	}
	if f.dockerHost != "" {
		cfg.DockerHost = f.dockerHost
	}
	return cfg, nil
}

// loadStack reads and parses the stack document. An explicit file argument
// wins over the --file flag and the config default.
func loadStack(ctx context.Context, cfg *config.Config, flags *globalFlags, args []string) (spec.StackSpec, error) {
	path := cfg.StackFile
	if len(args) > 0 {
		path = args[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return spec.StackSpec{}, fmt.Errorf("read stack document: %w", err)
	}

	stack, err := spec.Load(ctx, data, flags.stackName)
	if err != nil {
		return spec.StackSpec{}, err
	}
	return stack, nil
}

func openState(cfg *config.Config) (*sqlite.Store, error) {
	store, err := sqlite.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return store, nil
}

// newRuntime connects to the engine and waits for it to answer pings.
func newRuntime(ctx context.Context, cfg *config.Config) (*docker.Runtime, error) {
	var rt *docker.Runtime
	var err error
	if cfg.DockerHost != "" {
		rt, err = docker.NewRuntimeWithHost(cfg.DockerHost)
	} else {
		rt, err = docker.NewRuntime()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to engine: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, engineReadyTimeout)
	defer cancel()
	if err := rt.WaitReady(readyCtx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("engine not ready: %w", err)
	}
	return rt, nil
}

// inspectAll gathers engine state for every recorded container, keyed by
// container name. Missing containers come back with Exists false.
func inspectAll(ctx context.Context, rt deploy.ContainerRuntime, rows []deploy.ContainerRow) (map[string]deploy.ContainerInfo, error) {
	state := make(map[string]deploy.ContainerInfo, len(rows))
	for _, row := range rows {
		info, err := rt.ContainerInspect(ctx, row.ContainerName)
		if err != nil {
			return nil, fmt.Errorf("inspect container %s: %w", row.ContainerName, err)
		}
		state[row.ContainerName] = info
	}
	return state, nil
}
