package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"searchdock/internal/deploy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func deploymentRow(id, stack string, status deploy.DeployPhase) deploy.DeploymentRow {
	return deploy.DeploymentRow{
		ID:        id,
		Stack:     stack,
		SpecJSON:  `{"stack":"` + stack + `"}`,
		Status:    status,
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
}

func containerRow(id, stack, service, name string) deploy.ContainerRow {
	return deploy.ContainerRow{
		ID:            id,
		Stack:         stack,
		DeployID:      "deploy-1",
		Service:       service,
		ContainerName: name,
		SpecJSON:      `{"name":"` + service + `"}`,
		Status:        "running",
		CreatedAt:     "2026-01-01T00:00:00Z",
		UpdatedAt:     "2026-01-01T00:00:00Z",
	}
}

func TestDeployments_InsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	row := deploymentRow("deploy-1", "search", deploy.DeployInProgress)
	if err := store.InsertDeployment(ctx, row); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}

	got, found, err := store.GetDeployment(ctx, "deploy-1")
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if !found {
		t.Fatal("GetDeployment() found=false for saved row")
	}
	if got.Stack != "search" || got.Status != deploy.DeployInProgress {
		t.Fatalf("GetDeployment() = %+v", got)
	}
	if got.SpecJSON != row.SpecJSON {
		t.Fatalf("SpecJSON = %q, want %q", got.SpecJSON, row.SpecJSON)
	}
}

func TestDeployments_GetMissing(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.GetDeployment(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if found {
		t.Fatal("GetDeployment() found=true for missing row")
	}
}

func TestDeployments_Update(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	row := deploymentRow("deploy-1", "search", deploy.DeployInProgress)
	if err := store.InsertDeployment(ctx, row); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}

	row.Status = deploy.DeploySucceeded
	row.UpdatedAt = "2026-01-01T00:05:00Z"
	if err := store.UpdateDeployment(ctx, row); err != nil {
		t.Fatalf("UpdateDeployment() error = %v", err)
	}

	got, _, err := store.GetDeployment(ctx, "deploy-1")
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if got.Status != deploy.DeploySucceeded || got.UpdatedAt != "2026-01-01T00:05:00Z" {
		t.Fatalf("GetDeployment() after update = %+v", got)
	}
}

func TestDeployments_UpdateMissing(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateDeployment(context.Background(), deploymentRow("missing", "search", deploy.DeployFailed))
	if err == nil {
		t.Fatal("UpdateDeployment() error = nil for missing row")
	}
}

func TestDeployments_Latest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := deploymentRow("deploy-1", "search", deploy.DeploySucceeded)
	second := deploymentRow("deploy-2", "search", deploy.DeployInProgress)
	second.CreatedAt = "2026-01-02T00:00:00Z"
	other := deploymentRow("deploy-3", "other", deploy.DeploySucceeded)
	other.CreatedAt = "2026-01-03T00:00:00Z"

	for _, row := range []deploy.DeploymentRow{first, second, other} {
		if err := store.InsertDeployment(ctx, row); err != nil {
			t.Fatalf("InsertDeployment(%s) error = %v", row.ID, err)
		}
	}

	got, found, err := store.LatestDeployment(ctx, "search")
	if err != nil {
		t.Fatalf("LatestDeployment() error = %v", err)
	}
	if !found || got.ID != "deploy-2" {
		t.Fatalf("LatestDeployment() = (%+v, %v), want deploy-2", got, found)
	}

	list, err := store.ListDeployments(ctx, "search")
	if err != nil {
		t.Fatalf("ListDeployments() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListDeployments() len = %d, want 2", len(list))
	}
}

func TestDeployments_LatestWithinSameSecond(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// RFC3339Nano drops trailing zeros, so "…:00Z" sorts lexicographically
	// after "…:00.5Z" despite being earlier. The newest insert must still win.
	first := deploymentRow("deploy-1", "search", deploy.DeploySucceeded)
	first.CreatedAt = "2026-01-01T00:00:00Z"
	second := deploymentRow("deploy-2", "search", deploy.DeployInProgress)
	second.CreatedAt = "2026-01-01T00:00:00.5Z"

	for _, row := range []deploy.DeploymentRow{first, second} {
		if err := store.InsertDeployment(ctx, row); err != nil {
			t.Fatalf("InsertDeployment(%s) error = %v", row.ID, err)
		}
	}

	got, found, err := store.LatestDeployment(ctx, "search")
	if err != nil {
		t.Fatalf("LatestDeployment() error = %v", err)
	}
	if !found || got.ID != "deploy-2" {
		t.Fatalf("LatestDeployment() = (%+v, %v), want deploy-2", got, found)
	}
}

func TestContainers_CRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	row := containerRow("deploy-1/es-1", "search", "elasticsearch", "es-1")
	if err := store.InsertContainer(ctx, row); err != nil {
		t.Fatalf("InsertContainer() error = %v", err)
	}

	rows, err := store.ListContainersByStack(ctx, "search")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ContainerName != "es-1" {
		t.Fatalf("rows = %+v, want one es-1 row", rows)
	}

	row.Status = "stopped"
	row.UpdatedAt = "2026-01-01T00:10:00Z"
	if err := store.UpdateContainer(ctx, row); err != nil {
		t.Fatalf("UpdateContainer() error = %v", err)
	}
	rows, err = store.ListContainersByStack(ctx, "search")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if rows[0].Status != "stopped" {
		t.Fatalf("status = %q, want stopped", rows[0].Status)
	}

	if err := store.DeleteContainer(ctx, "deploy-1/es-1"); err != nil {
		t.Fatalf("DeleteContainer() error = %v", err)
	}
	rows, err = store.ListContainersByStack(ctx, "search")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %+v, want none after delete", rows)
	}
}

func TestContainers_DeleteByStack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, row := range []deploy.ContainerRow{
		containerRow("deploy-1/es-1", "search", "elasticsearch", "es-1"),
		containerRow("deploy-1/kb-1", "search", "kibana", "kb-1"),
		containerRow("deploy-9/os-1", "other", "opensearch", "os-1"),
	} {
		if err := store.InsertContainer(ctx, row); err != nil {
			t.Fatalf("InsertContainer(%s) error = %v", row.ID, err)
		}
	}

	if err := store.DeleteContainersByStack(ctx, "search"); err != nil {
		t.Fatalf("DeleteContainersByStack() error = %v", err)
	}

	rows, err := store.ListContainersByStack(ctx, "search")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("search rows = %+v, want none", rows)
	}

	rows, err = store.ListContainersByStack(ctx, "other")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("other rows = %+v, want untouched", rows)
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "test.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store.Close()
}
