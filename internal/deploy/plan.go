package deploy

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"searchdock/internal/spec"

	"github.com/google/uuid"
)

// BuildPlan computes the operations needed to transition from the recorded
// and observed state to the desired stack. runtimeState maps container name
// to inspected engine state for every recorded container.
func BuildPlan(stack spec.StackSpec, current []ContainerRow, runtimeState map[string]ContainerInfo) Plan {
	plan := Plan{
		Stack:    stack.Name,
		DeployID: uuid.NewString(),
		Volumes:  append([]spec.VolumeSpec(nil), stack.Volumes...),
	}

	rowByService := make(map[string]ContainerRow, len(current))
	for _, row := range current {
		rowByService[row.Service] = row
	}

	desired := make(map[string]bool, len(stack.Services))
	for _, svc := range stack.Services {
		desired[svc.Name] = true
		plan.Services = append(plan.Services, planService(stack.Name, svc, rowByService, runtimeState))
	}

	// Services recorded in the store but gone from the document.
	removed := make([]ContainerRow, 0)
	for _, row := range current {
		if !desired[row.Service] {
			removed = append(removed, row)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Service < removed[j].Service })
	for _, row := range removed {
		rowCopy := row
		plan.Services = append(plan.Services, ServicePlan{
			Name:          row.Service,
			Action:        Remove,
			Reason:        "service removed from stack",
			ContainerName: row.ContainerName,
			CurrentRow:    &rowCopy,
		})
	}

	return plan
}

func planService(stack string, svc spec.ServiceSpec, rowByService map[string]ContainerRow, runtimeState map[string]ContainerInfo) ServicePlan {
	out := ServicePlan{
		Name:          svc.Name,
		Spec:          svc,
		ContainerName: containerNameForService(stack, svc),
	}

	row, ok := rowByService[svc.Name]
	if !ok {
		out.Action = Create
		out.Reason = "new service"
		return out
	}

	rowCopy := row
	out.CurrentRow = &rowCopy

	currentSpec, err := DecodeServiceSpec(row.SpecJSON)
	if err != nil {
		out.Action = NeedsRecreate
		out.Reason = fmt.Sprintf("recorded spec decode failed: %v", err)
		return out
	}

	info := runtimeState[row.ContainerName]
	if !info.Exists {
		out.Action = Create
		out.Reason = "container missing from engine"
		return out
	}

	if !spec.Equal(currentSpec, svc) {
		out.Action = NeedsRecreate
		out.Reason = driftReason(currentSpec, svc)
		return out
	}

	// Keep the recorded name once the container exists; a regenerated name
	// would orphan the running container.
	out.ContainerName = row.ContainerName

	if !info.Running {
		out.Action = NeedsRestart
		out.Reason = "container stopped"
		return out
	}

	out.Action = UpToDate
	out.Reason = "spec unchanged"
	return out
}

func containerNameForService(stack string, svc spec.ServiceSpec) string {
	if svc.ContainerName != "" {
		return svc.ContainerName
	}
	return ContainerName(stack, svc.Name)
}

func driftReason(current, incoming spec.ServiceSpec) string {
	current = spec.Canonical(current)
	incoming = spec.Canonical(incoming)

	switch {
	case current.Image != incoming.Image:
		return fmt.Sprintf("image changed (%s -> %s)", current.Image, incoming.Image)
	case !reflect.DeepEqual(current.Environment, incoming.Environment):
		return "environment changed"
	case !reflect.DeepEqual(current.Ports, incoming.Ports):
		return "ports changed"
	case !reflect.DeepEqual(current.Mounts, incoming.Mounts):
		return "mounts changed"
	case !reflect.DeepEqual(current.HealthCheck, incoming.HealthCheck):
		return "health check changed"
	case !reflect.DeepEqual(current.Command, incoming.Command) || !reflect.DeepEqual(current.Entrypoint, incoming.Entrypoint):
		return "command changed"
	default:
		return "container spec changed"
	}
}

// DecodeServiceSpec parses the spec_json column back into a ServiceSpec.
func DecodeServiceSpec(raw string) (spec.ServiceSpec, error) {
	var out spec.ServiceSpec
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return spec.ServiceSpec{}, err
	}
	return spec.Canonical(out), nil
}

// EncodeServiceSpec serializes a canonicalized ServiceSpec for storage.
func EncodeServiceSpec(s spec.ServiceSpec) (string, error) {
	data, err := json.Marshal(spec.Canonical(s))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
