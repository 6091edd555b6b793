package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"searchdock/internal/deploy"
	"searchdock/internal/spec"
)

const healthPollCadence = time.Second

var _ deploy.HealthChecker = (*HealthMonitor)(nil)

// HealthMonitor waits for containers to reach the engine's healthy state by
// polling inspect results. The engine itself runs the configured probe; we
// only read its verdict.
type HealthMonitor struct {
	rt *Runtime
}

func NewHealthMonitor(rt *Runtime) *HealthMonitor {
	return &HealthMonitor{rt: rt}
}

// WaitHealthy blocks until the container reports healthy, or fails once the
// health check budget (start period plus retries full rounds of probes, with
// one poll cadence of slack) is exhausted or the container reports unhealthy.
func (m *HealthMonitor) WaitHealthy(ctx context.Context, containerName string, hc spec.HealthCheck) error {
	budget := hc.Budget() + healthPollCadence
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(healthPollCadence)
	defer ticker.Stop()

	for {
		info, err := m.rt.ContainerInspect(ctx, containerName)
		if err != nil {
			return err
		}
		switch {
		case !info.Exists:
			return fmt.Errorf("container %q disappeared while waiting for health", containerName)
		case info.Health == "healthy":
			return nil
		case info.Health == "unhealthy":
			return fmt.Errorf("container %q reported unhealthy", containerName)
		case info.Health == "":
			// No health check configured on the engine side; running is the
			// best signal available.
			if info.Running {
				return nil
			}
			return fmt.Errorf("container %q is not running", containerName)
		}

		slog.Debug("waiting for container health", "container", containerName, "status", info.Health)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timeout after %s waiting for container %q health", budget, containerName)
		case <-ticker.C:
		}
	}
}
