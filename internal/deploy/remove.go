package deploy

import (
	"context"
	"fmt"
	"time"

	"searchdock/internal/check"
	"searchdock/internal/spec"
)

// RemoveStack stops and removes all engine containers for a stack and
// deletes the stack's container rows. Named volumes are kept unless volumes
// are passed; the data is meant to outlive container recreation.
func RemoveStack(
	ctx context.Context,
	rt ContainerRuntime,
	stores Stores,
	stack string,
	volumes []spec.VolumeSpec,
	clock Clock,
) error {
	check.Assert(rt != nil, "RemoveStack: container runtime must not be nil")
	check.Assert(stores.Containers != nil, "RemoveStack: container store must not be nil")

	containers, err := rt.ContainerList(ctx, map[string]string{LabelStack: stack})
	if err != nil {
		return fmt.Errorf("list stack containers %q: %w", stack, err)
	}

	var firstErr error
	for _, container := range containers {
		if stopErr := rt.ContainerStop(ctx, container.Name); stopErr != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop container %s: %w", container.Name, stopErr)
		}
		if removeErr := rt.ContainerRemove(ctx, container.Name, true); removeErr != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove container %s: %w", container.Name, removeErr)
		}
	}

	if err := stores.Containers.DeleteContainersByStack(ctx, stack); err != nil {
		if firstErr != nil {
			return fmt.Errorf("%w; delete stack rows %q: %v", firstErr, stack, err)
		}
		return fmt.Errorf("delete stack rows %q: %w", stack, err)
	}

	for _, vol := range volumes {
		if removeErr := rt.VolumeRemove(ctx, vol.Name, false); removeErr != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove volume %s: %w", vol.Name, removeErr)
		}
	}

	if stores.Deployments != nil {
		if row, ok, getErr := stores.Deployments.LatestDeployment(ctx, stack); getErr == nil && ok {
			row.Status = DeployRemoved
			row.UpdatedAt = clock.Now().UTC().Format(time.RFC3339Nano)
			if updateErr := stores.Deployments.UpdateDeployment(ctx, row); updateErr != nil && firstErr == nil {
				firstErr = fmt.Errorf("update deployment row %s: %w", row.ID, updateErr)
			}
		}
	}

	return firstErr
}
