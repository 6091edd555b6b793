package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"searchdock/internal/check"
	"searchdock/internal/spec"
)

const (
	LabelStack    = "searchdock.stack"
	LabelService  = "searchdock.service"
	LabelDeployID = "searchdock.deploy_id"
)

// Apply executes a plan against the engine and the state store.
//
// The events channel is optional and never closed by Apply. Events are sent
// with non-blocking writes and may be dropped if the channel is full.
func Apply(
	ctx context.Context,
	rt ContainerRuntime,
	stores Stores,
	health HealthChecker,
	plan Plan,
	clock Clock,
	events chan<- ProgressEvent,
) (result ApplyResult, retErr error) {
	check.Assert(rt != nil, "Apply: container runtime must not be nil")
	check.Assert(stores.Containers != nil, "Apply: container store must not be nil")
	check.Assert(stores.Deployments != nil, "Apply: deployment store must not be nil")
	check.Assert(health != nil, "Apply: health checker must not be nil")
	check.Assert(clock != nil, "Apply: clock must not be nil")

	result = ApplyResult{
		Stack:    plan.Stack,
		DeployID: plan.DeployID,
	}

	if err := preFlight(ctx, stores, plan, clock); err != nil {
		return result, decorateDeployError(err, DeployErrorPhasePreFlight, plan.Stack, "")
	}

	finalStatus := DeployFailed
	defer func() {
		result.Status = finalStatus
		if err := postFlight(ctx, stores, plan, finalStatus, clock); err != nil {
			if retErr == nil {
				retErr = fmt.Errorf("deploy post-flight: %w", err)
				return
			}
			retErr = fmt.Errorf("%w; deploy post-flight: %v", retErr, err)
		}
	}()

	if err := prePull(ctx, rt, plan, events); err != nil {
		retErr = decorateDeployError(err, DeployErrorPhasePrePull, plan.Stack, "")
		emit(events, ProgressEvent{Type: "deploy_failed", Message: retErr.Error()})
		return result, retErr
	}

	if err := ensureVolumes(ctx, rt, plan, events); err != nil {
		retErr = decorateDeployError(err, DeployErrorPhaseVolume, plan.Stack, "")
		emit(events, ProgressEvent{Type: "deploy_failed", Message: retErr.Error()})
		return result, retErr
	}

	rollbackActions, healthTargets, err := executeServices(ctx, rt, stores, plan, clock, events)
	if err != nil {
		retErr = decorateDeployError(err, DeployErrorPhaseExecute, plan.Stack, "")
		emit(events, ProgressEvent{Type: "deploy_failed", Message: retErr.Error()})
		return result, retErr
	}

	for _, target := range healthTargets {
		if err := health.WaitHealthy(ctx, target.container, target.check); err != nil {
			rbErr := rollback(ctx, rollbackActions, events)
			msg := fmt.Sprintf("container %s health failed: %v", target.container, err)
			if rbErr != nil {
				msg = msg + "; rollback: " + rbErr.Error()
			}
			retErr = &DeployError{Stack: plan.Stack, Phase: DeployErrorPhaseHealth, Service: target.service, Message: msg}
			emit(events, ProgressEvent{Type: "deploy_failed", Message: retErr.Error()})
			return result, retErr
		}
		emit(events, ProgressEvent{Type: "health_check_passed", Service: target.service, Container: target.container})
	}

	rows, err := assertPostcondition(ctx, rt, plan)
	result.Containers = rows
	if err != nil {
		retErr = decorateDeployError(err, DeployErrorPhasePostcondition, plan.Stack, "")
		emit(events, ProgressEvent{Type: "deploy_failed", Message: retErr.Error()})
		return result, retErr
	}

	finalStatus = DeploySucceeded
	emit(events, ProgressEvent{Type: "deploy_complete", Message: plan.DeployID})
	return result, nil
}

type rollbackAction struct {
	description string
	run         func(context.Context) error
}

type healthTarget struct {
	service   string
	container string
	check     spec.HealthCheck
}

// preFlight writes or updates the deployment row.
func preFlight(ctx context.Context, stores Stores, plan Plan, clock Clock) error {
	now := clock.Now().UTC().Format(time.RFC3339Nano)
	specJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal deploy plan: %w", err)
	}

	row := DeploymentRow{
		ID:        plan.DeployID,
		Stack:     plan.Stack,
		SpecJSON:  string(specJSON),
		Status:    DeployInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, ok, err := stores.Deployments.GetDeployment(ctx, plan.DeployID)
	if err != nil {
		return fmt.Errorf("read deployment row %q: %w", plan.DeployID, err)
	}
	if ok {
		row.CreatedAt = existing.CreatedAt
		if err := stores.Deployments.UpdateDeployment(ctx, row); err != nil {
			return fmt.Errorf("update deployment row %q: %w", plan.DeployID, err)
		}
		return nil
	}
	if err := stores.Deployments.InsertDeployment(ctx, row); err != nil {
		return fmt.Errorf("insert deployment row %q: %w", plan.DeployID, err)
	}
	return nil
}

// postFlight finalizes the deployment status.
func postFlight(ctx context.Context, stores Stores, plan Plan, status DeployPhase, clock Clock) error {
	row, ok, err := stores.Deployments.GetDeployment(ctx, plan.DeployID)
	if err != nil {
		return fmt.Errorf("read deployment row %q: %w", plan.DeployID, err)
	}
	if !ok {
		return fmt.Errorf("deployment row %q not found", plan.DeployID)
	}

	row.Status = status
	row.UpdatedAt = clock.Now().UTC().Format(time.RFC3339Nano)
	if err := stores.Deployments.UpdateDeployment(ctx, row); err != nil {
		return fmt.Errorf("update deployment row %q: %w", plan.DeployID, err)
	}
	return nil
}

// prePull pulls all unique images needed by create and recreate operations.
func prePull(ctx context.Context, rt ContainerRuntime, plan Plan, events chan<- ProgressEvent) error {
	imagesSet := make(map[string]struct{})
	for _, svc := range plan.Services {
		if svc.Action != Create && svc.Action != NeedsRecreate {
			continue
		}
		if img := strings.TrimSpace(svc.Spec.Image); img != "" {
			imagesSet[img] = struct{}{}
		}
	}

	images := make([]string, 0, len(imagesSet))
	for image := range imagesSet {
		images = append(images, image)
	}
	sort.Strings(images)

	for _, image := range images {
		if err := rt.ImagePull(ctx, image); err != nil {
			return fmt.Errorf("pull image %q: %w", image, err)
		}
		emit(events, ProgressEvent{Type: "image_pulled", Message: image})
	}
	return nil
}

// ensureVolumes creates every declared volume that does not exist yet.
// Volumes are never recreated; the data outlives the containers.
func ensureVolumes(ctx context.Context, rt ContainerRuntime, plan Plan, events chan<- ProgressEvent) error {
	for _, vol := range plan.Volumes {
		if err := rt.VolumeEnsure(ctx, vol); err != nil {
			return fmt.Errorf("ensure volume %q: %w", vol.Name, err)
		}
		emit(events, ProgressEvent{Type: "volume_ensured", Message: vol.Name})
	}
	return nil
}

func executeServices(
	ctx context.Context,
	rt ContainerRuntime,
	stores Stores,
	plan Plan,
	clock Clock,
	events chan<- ProgressEvent,
) ([]rollbackAction, []healthTarget, error) {
	rollbackActions := make([]rollbackAction, 0)
	healthTargets := make([]healthTarget, 0)

	fail := func(service ServicePlan, format string, args ...any) ([]rollbackAction, []healthTarget, error) {
		return rollbackActions, nil, &DeployError{
			Stack:   plan.Stack,
			Phase:   DeployErrorPhaseExecute,
			Service: service.Name,
			Message: fmt.Sprintf(format, args...),
		}
	}

	for _, service := range plan.Services {
		if err := ctx.Err(); err != nil {
			return fail(service, "%v", err)
		}

		switch service.Action {
		case UpToDate:
			continue

		case Remove:
			if service.CurrentRow == nil {
				return fail(service, "remove %s has no recorded row", service.ContainerName)
			}
			oldRow := *service.CurrentRow
			oldSpec, err := DecodeServiceSpec(oldRow.SpecJSON)
			if err != nil {
				return fail(service, "decode recorded spec for %s: %v", oldRow.ContainerName, err)
			}

			if err := rt.ContainerStop(ctx, oldRow.ContainerName); err != nil {
				return fail(service, "stop container %s: %v", oldRow.ContainerName, err)
			}
			if err := rt.ContainerRemove(ctx, oldRow.ContainerName, true); err != nil {
				return fail(service, "remove container %s: %v", oldRow.ContainerName, err)
			}
			if err := stores.Containers.DeleteContainer(ctx, oldRow.ID); err != nil {
				return fail(service, "delete container row %s: %v", oldRow.ID, err)
			}

			rollbackActions = append(rollbackActions, rollbackAction{
				description: "restore removed container",
				run: func(ctx context.Context) error {
					cfg := createConfigForSpec(plan.Stack, oldRow.DeployID, service.Name, oldRow.ContainerName, oldSpec)
					if err := rt.ContainerCreate(ctx, cfg); err != nil {
						return fmt.Errorf("rollback create container %s: %w", oldRow.ContainerName, err)
					}
					if err := rt.ContainerStart(ctx, oldRow.ContainerName); err != nil {
						return fmt.Errorf("rollback start container %s: %w", oldRow.ContainerName, err)
					}
					if err := stores.Containers.InsertContainer(ctx, oldRow); err != nil {
						return fmt.Errorf("rollback insert container row %s: %w", oldRow.ID, err)
					}
					return nil
				},
			})
			emit(events, ProgressEvent{Type: "container_removed", Service: service.Name, Container: oldRow.ContainerName})

		case Create:
			// A stale row means the engine lost the container; clear the
			// record before creating fresh.
			if service.CurrentRow != nil {
				if err := stores.Containers.DeleteContainer(ctx, service.CurrentRow.ID); err != nil {
					return fail(service, "delete stale row %s: %v", service.CurrentRow.ID, err)
				}
			}

			row, err := createAndStart(ctx, rt, stores, plan, service, clock, events)
			if err != nil {
				return rollbackActions, nil, err
			}
			newRow := row
			rollbackActions = append(rollbackActions, rollbackAction{
				description: "remove created container",
				run: func(ctx context.Context) error {
					_ = rt.ContainerStop(ctx, newRow.ContainerName)
					if err := rt.ContainerRemove(ctx, newRow.ContainerName, true); err != nil {
						return fmt.Errorf("rollback remove container %s: %w", newRow.ContainerName, err)
					}
					if err := stores.Containers.DeleteContainer(ctx, newRow.ID); err != nil {
						return fmt.Errorf("rollback delete container row %s: %w", newRow.ID, err)
					}
					return nil
				},
			})
			if service.Spec.HealthCheck != nil {
				healthTargets = append(healthTargets, healthTarget{
					service:   service.Name,
					container: service.ContainerName,
					check:     *service.Spec.HealthCheck,
				})
			}

		case NeedsRestart:
			if service.CurrentRow == nil {
				return fail(service, "restart %s has no recorded row", service.ContainerName)
			}
			if err := rt.ContainerStart(ctx, service.ContainerName); err != nil {
				return fail(service, "start container %s: %v", service.ContainerName, err)
			}
			emit(events, ProgressEvent{Type: "container_started", Service: service.Name, Container: service.ContainerName})

			updated := *service.CurrentRow
			updated.Status = "running"
			updated.UpdatedAt = clock.Now().UTC().Format(time.RFC3339Nano)
			if err := stores.Containers.UpdateContainer(ctx, updated); err != nil {
				return fail(service, "update container row %s: %v", updated.ID, err)
			}

			name := service.ContainerName
			rollbackActions = append(rollbackActions, rollbackAction{
				description: "stop restarted container",
				run: func(ctx context.Context) error {
					return rt.ContainerStop(ctx, name)
				},
			})
			if service.Spec.HealthCheck != nil {
				healthTargets = append(healthTargets, healthTarget{
					service:   service.Name,
					container: service.ContainerName,
					check:     *service.Spec.HealthCheck,
				})
			}

		case NeedsRecreate:
			if service.CurrentRow == nil {
				return fail(service, "recreate %s has no recorded row", service.ContainerName)
			}
			oldRow := *service.CurrentRow
			oldSpec, err := DecodeServiceSpec(oldRow.SpecJSON)
			if err != nil {
				return fail(service, "decode recorded spec for %s: %v", oldRow.ContainerName, err)
			}

			if err := rt.ContainerStop(ctx, oldRow.ContainerName); err != nil {
				return fail(service, "stop old container %s: %v", oldRow.ContainerName, err)
			}
			if err := rt.ContainerRemove(ctx, oldRow.ContainerName, true); err != nil {
				return fail(service, "remove old container %s: %v", oldRow.ContainerName, err)
			}
			if err := stores.Containers.DeleteContainer(ctx, oldRow.ID); err != nil {
				return fail(service, "delete old row %s: %v", oldRow.ID, err)
			}

			row, err := createAndStart(ctx, rt, stores, plan, service, clock, events)
			if err != nil {
				return rollbackActions, nil, err
			}
			newRow := row
			rollbackActions = append(rollbackActions, rollbackAction{
				description: "restore recreated container",
				run: func(ctx context.Context) error {
					_ = rt.ContainerStop(ctx, newRow.ContainerName)
					if err := rt.ContainerRemove(ctx, newRow.ContainerName, true); err != nil {
						return fmt.Errorf("rollback remove new container %s: %w", newRow.ContainerName, err)
					}
					if err := stores.Containers.DeleteContainer(ctx, newRow.ID); err != nil {
						return fmt.Errorf("rollback delete new row %s: %w", newRow.ID, err)
					}
					cfg := createConfigForSpec(plan.Stack, oldRow.DeployID, service.Name, oldRow.ContainerName, oldSpec)
					if err := rt.ContainerCreate(ctx, cfg); err != nil {
						return fmt.Errorf("rollback create old container %s: %w", oldRow.ContainerName, err)
					}
					if err := rt.ContainerStart(ctx, oldRow.ContainerName); err != nil {
						return fmt.Errorf("rollback start old container %s: %w", oldRow.ContainerName, err)
					}
					if err := stores.Containers.InsertContainer(ctx, oldRow); err != nil {
						return fmt.Errorf("rollback insert old row %s: %w", oldRow.ID, err)
					}
					return nil
				},
			})
			if service.Spec.HealthCheck != nil {
				healthTargets = append(healthTargets, healthTarget{
					service:   service.Name,
					container: service.ContainerName,
					check:     *service.Spec.HealthCheck,
				})
			}

		default:
			return fail(service, "unknown plan action %d", service.Action)
		}
	}

	return rollbackActions, healthTargets, nil
}

func createAndStart(
	ctx context.Context,
	rt ContainerRuntime,
	stores Stores,
	plan Plan,
	service ServicePlan,
	clock Clock,
	events chan<- ProgressEvent,
) (ContainerRow, error) {
	now := clock.Now().UTC().Format(time.RFC3339Nano)
	specJSON, err := EncodeServiceSpec(service.Spec)
	if err != nil {
		return ContainerRow{}, &DeployError{Stack: plan.Stack, Phase: DeployErrorPhaseExecute, Service: service.Name, Message: fmt.Sprintf("marshal spec for %s: %v", service.ContainerName, err)}
	}

	cfg := createConfigForSpec(plan.Stack, plan.DeployID, service.Name, service.ContainerName, service.Spec)
	if err := rt.ContainerCreate(ctx, cfg); err != nil {
		return ContainerRow{}, &DeployError{Stack: plan.Stack, Phase: DeployErrorPhaseExecute, Service: service.Name, Message: fmt.Sprintf("create container %s: %v", service.ContainerName, err)}
	}
	emit(events, ProgressEvent{Type: "container_created", Service: service.Name, Container: service.ContainerName})

	if err := rt.ContainerStart(ctx, service.ContainerName); err != nil {
		return ContainerRow{}, &DeployError{Stack: plan.Stack, Phase: DeployErrorPhaseExecute, Service: service.Name, Message: fmt.Sprintf("start container %s: %v", service.ContainerName, err)}
	}
	emit(events, ProgressEvent{Type: "container_started", Service: service.Name, Container: service.ContainerName})

	row := ContainerRow{
		ID:            containerRowID(plan.DeployID, service.ContainerName),
		Stack:         plan.Stack,
		DeployID:      plan.DeployID,
		Service:       service.Name,
		ContainerName: service.ContainerName,
		SpecJSON:      specJSON,
		Status:        "running",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := stores.Containers.InsertContainer(ctx, row); err != nil {
		return ContainerRow{}, &DeployError{Stack: plan.Stack, Phase: DeployErrorPhaseExecute, Service: service.Name, Message: fmt.Sprintf("insert container row %s: %v", row.ID, err)}
	}
	return row, nil
}

func rollback(ctx context.Context, actions []rollbackAction, events chan<- ProgressEvent) error {
	if len(actions) == 0 {
		return nil
	}
	emit(events, ProgressEvent{Type: "rollback_started"})

	var firstErr error
	for i := len(actions) - 1; i >= 0; i-- {
		if err := actions[i].run(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", actions[i].description, err)
		}
	}
	return firstErr
}

// createConfigForSpec converts a ServiceSpec into engine create config with
// the managed labels attached.
func createConfigForSpec(stack, deployID, service, containerName string, s spec.ServiceSpec) ContainerCreateConfig {
	cmd := make([]string, 0, len(s.Entrypoint)+len(s.Command))
	cmd = append(cmd, s.Entrypoint...)
	cmd = append(cmd, s.Command...)
	if len(cmd) == 0 {
		cmd = nil
	}

	labels := make(map[string]string, len(s.Labels)+3)
	for key, value := range s.Labels {
		labels[key] = value
	}
	labels[LabelStack] = stack
	labels[LabelService] = service
	labels[LabelDeployID] = deployID

	var hc *spec.HealthCheck
	if s.HealthCheck != nil {
		copied := *s.HealthCheck
		copied.Test = append([]string(nil), s.HealthCheck.Test...)
		hc = &copied
	}

	return ContainerCreateConfig{
		Name:          containerName,
		Image:         s.Image,
		Cmd:           cmd,
		Env:           append([]string(nil), s.Environment...),
		Mounts:        append([]spec.Mount(nil), s.Mounts...),
		Ports:         append([]spec.PortMapping(nil), s.Ports...),
		Labels:        labels,
		RestartPolicy: s.RestartPolicy,
		HealthCheck:   hc,
	}
}

// emit sends a progress event if events is non-nil.
// The send is non-blocking; events are dropped if the channel is full.
func emit(events chan<- ProgressEvent, ev ProgressEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

func decorateDeployError(err error, phase DeployErrorPhase, stack, service string) error {
	var de *DeployError
	if errors.As(err, &de) {
		out := *de
		if out.Stack == "" {
			out.Stack = stack
		}
		if !out.Phase.IsValid() {
			out.Phase = phase
		}
		return &out
	}
	return &DeployError{
		Stack:   stack,
		Phase:   phase,
		Service: service,
		Message: err.Error(),
	}
}

func containerRowID(deployID, containerName string) string {
	return deployID + "/" + containerName
}
