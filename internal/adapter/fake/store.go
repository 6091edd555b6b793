package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"searchdock/internal/deploy"
	"searchdock/internal/spec"
)

var (
	_ deploy.DeploymentStore = (*DeploymentStore)(nil)
	_ deploy.ContainerStore  = (*ContainerStore)(nil)
	_ deploy.HealthChecker   = (*HealthChecker)(nil)
)

// DeploymentStore is an in-memory implementation of deploy.DeploymentStore.
type DeploymentStore struct {
	CallRecorder
	mu          sync.Mutex
	deployments map[string]deploy.DeploymentRow

	InsertDeploymentErr func(ctx context.Context, row deploy.DeploymentRow) error
	UpdateDeploymentErr func(ctx context.Context, row deploy.DeploymentRow) error
	GetDeploymentErr    func(ctx context.Context, id string) error
}

func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{deployments: make(map[string]deploy.DeploymentRow)}
}

func (s *DeploymentStore) InsertDeployment(ctx context.Context, row deploy.DeploymentRow) error {
	s.record("InsertDeployment", row.ID)
	if s.InsertDeploymentErr != nil {
		if err := s.InsertDeploymentErr(ctx, row); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deployments[row.ID]; exists {
		return fmt.Errorf("deployment %q already exists", row.ID)
	}
	s.deployments[row.ID] = row
	return nil
}

func (s *DeploymentStore) UpdateDeployment(ctx context.Context, row deploy.DeploymentRow) error {
	s.record("UpdateDeployment", row.ID)
	if s.UpdateDeploymentErr != nil {
		if err := s.UpdateDeploymentErr(ctx, row); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deployments[row.ID]; !exists {
		return fmt.Errorf("deployment %q not found", row.ID)
	}
	s.deployments[row.ID] = row
	return nil
}

func (s *DeploymentStore) GetDeployment(ctx context.Context, id string) (deploy.DeploymentRow, bool, error) {
	s.record("GetDeployment", id)
	if s.GetDeploymentErr != nil {
		if err := s.GetDeploymentErr(ctx, id); err != nil {
			return deploy.DeploymentRow{}, false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.deployments[id]
	return row, ok, nil
}

func (s *DeploymentStore) LatestDeployment(ctx context.Context, stack string) (deploy.DeploymentRow, bool, error) {
	s.record("LatestDeployment", stack)
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest deploy.DeploymentRow
	found := false
	for _, row := range s.deployments {
		if row.Stack != stack {
			continue
		}
		if !found || row.CreatedAt > latest.CreatedAt {
			latest = row
			found = true
		}
	}
	return latest, found, nil
}

func (s *DeploymentStore) ListDeployments(ctx context.Context, stack string) ([]deploy.DeploymentRow, error) {
	s.record("ListDeployments", stack)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]deploy.DeploymentRow, 0)
	for _, row := range s.deployments {
		if row.Stack == stack {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// ContainerStore is an in-memory implementation of deploy.ContainerStore.
type ContainerStore struct {
	CallRecorder
	mu         sync.Mutex
	containers map[string]deploy.ContainerRow

	InsertContainerErr func(ctx context.Context, row deploy.ContainerRow) error
	UpdateContainerErr func(ctx context.Context, row deploy.ContainerRow) error
	DeleteContainerErr func(ctx context.Context, id string) error
}

func NewContainerStore() *ContainerStore {
	return &ContainerStore{containers: make(map[string]deploy.ContainerRow)}
}

func (s *ContainerStore) InsertContainer(ctx context.Context, row deploy.ContainerRow) error {
	s.record("InsertContainer", row.ID)
	if s.InsertContainerErr != nil {
		if err := s.InsertContainerErr(ctx, row); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.containers[row.ID]; exists {
		return fmt.Errorf("container row %q already exists", row.ID)
	}
	s.containers[row.ID] = row
	return nil
}

func (s *ContainerStore) UpdateContainer(ctx context.Context, row deploy.ContainerRow) error {
	s.record("UpdateContainer", row.ID)
	if s.UpdateContainerErr != nil {
		if err := s.UpdateContainerErr(ctx, row); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.containers[row.ID]; !exists {
		return fmt.Errorf("container row %q not found", row.ID)
	}
	s.containers[row.ID] = row
	return nil
}

func (s *ContainerStore) ListContainersByStack(ctx context.Context, stack string) ([]deploy.ContainerRow, error) {
	s.record("ListContainersByStack", stack)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]deploy.ContainerRow, 0)
	for _, row := range s.containers {
		if row.Stack == stack {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (s *ContainerStore) DeleteContainer(ctx context.Context, id string) error {
	s.record("DeleteContainer", id)
	if s.DeleteContainerErr != nil {
		if err := s.DeleteContainerErr(ctx, id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, id)
	return nil
}

func (s *ContainerStore) DeleteContainersByStack(ctx context.Context, stack string) error {
	s.record("DeleteContainersByStack", stack)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.containers {
		if row.Stack == stack {
			delete(s.containers, id)
		}
	}
	return nil
}

// HealthChecker is a fake deploy.HealthChecker.
type HealthChecker struct {
	CallRecorder
	WaitHealthyErr func(ctx context.Context, containerName string) error
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) WaitHealthy(ctx context.Context, containerName string, _ spec.HealthCheck) error {
	h.record("WaitHealthy", containerName)
	if h.WaitHealthyErr != nil {
		return h.WaitHealthyErr(ctx, containerName)
	}
	return nil
}
