package deploy

import (
	"fmt"

	"searchdock/internal/spec"
)

// ChangeKind classifies what a planned service needs.
type ChangeKind int

const (
	UpToDate ChangeKind = iota
	NeedsRestart
	NeedsRecreate
	Create
	Remove
)

func (k ChangeKind) String() string {
	switch k {
	case UpToDate:
		return "up_to_date"
	case NeedsRestart:
		return "needs_restart"
	case NeedsRecreate:
		return "needs_recreate"
	case Create:
		return "create"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Plan is the computed set of operations for one apply.
type Plan struct {
	Stack    string
	DeployID string
	Volumes  []spec.VolumeSpec
	Services []ServicePlan
}

// ServicePlan is the planned operation for one service. A stack runs exactly
// one container per service.
type ServicePlan struct {
	Name          string
	Action        ChangeKind
	Reason        string
	ContainerName string
	Spec          spec.ServiceSpec
	CurrentRow    *ContainerRow
}

// ChangeCount returns how many plan entries require engine operations.
func (p Plan) ChangeCount() int {
	count := 0
	for _, svc := range p.Services {
		if svc.Action != UpToDate {
			count++
		}
	}
	return count
}

// DeploymentRow maps to the deployments table.
type DeploymentRow struct {
	ID        string      `json:"id"`
	Stack     string      `json:"stack"`
	SpecJSON  string      `json:"spec_json"`
	Status    DeployPhase `json:"status"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

// ContainerRow maps to the containers table.
type ContainerRow struct {
	ID            string `json:"id"`
	Stack         string `json:"stack"`
	DeployID      string `json:"deploy_id"`
	Service       string `json:"service"`
	ContainerName string `json:"container_name"`
	SpecJSON      string `json:"spec_json"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ApplyResult summarizes one apply attempt.
type ApplyResult struct {
	Stack      string
	DeployID   string
	Status     DeployPhase
	Containers []ContainerResult
}

// ContainerResult is the postcondition row for one expected container.
type ContainerResult struct {
	Service       string
	ContainerName string
	Expected      string
	Actual        string
	Match         bool
}

// DeployError carries structured context for deploy failures.
type DeployError struct {
	Stack   string
	Phase   DeployErrorPhase
	Service string
	Message string
}

func (e *DeployError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Service == "" {
		return fmt.Sprintf("deploy %q failed at %s: %s", e.Stack, e.Phase, e.Message)
	}
	return fmt.Sprintf("deploy %q failed at %s (service %s): %s", e.Stack, e.Phase, e.Service, e.Message)
}

// ProgressEvent is a best-effort notification emitted during apply.
type ProgressEvent struct {
	Type      string
	Service   string
	Container string
	Message   string
}
