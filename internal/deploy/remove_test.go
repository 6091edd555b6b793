package deploy_test

import (
	"context"
	"errors"
	"testing"

	"searchdock/internal/adapter/fake"
	"searchdock/internal/deploy"
	"searchdock/internal/spec"
)

func deployTestStack(t *testing.T, rt *fake.ContainerRuntime, stores deploy.Stores) deploy.Plan {
	t.Helper()

	plan := createPlan("searchdock-search-elasticsearch-ab01")
	if _, err := deploy.Apply(context.Background(), rt, stores, fake.NewHealthChecker(), plan, testClock(), nil); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return plan
}

func TestRemoveStack_KeepsVolumesByDefault(t *testing.T) {
	rt := fake.NewContainerRuntime()
	containers := fake.NewContainerStore()
	deployments := fake.NewDeploymentStore()
	stores := deploy.Stores{Containers: containers, Deployments: deployments}
	ctx := context.Background()

	plan := deployTestStack(t, rt, stores)

	if err := deploy.RemoveStack(ctx, rt, stores, "search", nil, testClock()); err != nil {
		t.Fatalf("RemoveStack() error = %v", err)
	}

	info, err := rt.ContainerInspect(ctx, "searchdock-search-elasticsearch-ab01")
	if err != nil {
		t.Fatalf("ContainerInspect() error = %v", err)
	}
	if info.Exists {
		t.Fatal("container still exists after removal")
	}
	if !rt.VolumeExists("esdata") {
		t.Fatal("volume removed; data should be kept by default")
	}

	rows, err := containers.ListContainersByStack(ctx, "search")
	if err != nil {
		t.Fatalf("ListContainersByStack() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("container rows = %+v, want none", rows)
	}

	deployment, ok, err := deployments.GetDeployment(ctx, plan.DeployID)
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if !ok {
		t.Fatal("deployment row deleted; the history should remain")
	}
	if deployment.Status != deploy.DeployRemoved {
		t.Fatalf("deployment status = %v, want removed", deployment.Status)
	}
}

func TestRemoveStack_DeletesVolumesWhenAsked(t *testing.T) {
	rt := fake.NewContainerRuntime()
	stores := deploy.Stores{Containers: fake.NewContainerStore(), Deployments: fake.NewDeploymentStore()}
	ctx := context.Background()

	deployTestStack(t, rt, stores)

	volumes := []spec.VolumeSpec{{Name: "esdata", Driver: "local"}}
	if err := deploy.RemoveStack(ctx, rt, stores, "search", volumes, testClock()); err != nil {
		t.Fatalf("RemoveStack() error = %v", err)
	}
	if rt.VolumeExists("esdata") {
		t.Fatal("volume still exists after --volumes removal")
	}
}

func TestRemoveStack_ContinuesPastStopFailure(t *testing.T) {
	rt := fake.NewContainerRuntime()
	containers := fake.NewContainerStore()
	stores := deploy.Stores{Containers: containers, Deployments: fake.NewDeploymentStore()}
	ctx := context.Background()

	deployTestStack(t, rt, stores)

	rt.ContainerStopErr = func(ctx context.Context, name string) error {
		return errors.New("engine timeout")
	}

	err := deploy.RemoveStack(ctx, rt, stores, "search", nil, testClock())
	if err == nil {
		t.Fatal("RemoveStack() error = nil, want stop failure reported")
	}

	// The rows are still cleared even though stopping failed.
	rows, listErr := containers.ListContainersByStack(ctx, "search")
	if listErr != nil {
		t.Fatalf("ListContainersByStack() error = %v", listErr)
	}
	if len(rows) != 0 {
		t.Fatalf("container rows = %+v, want none", rows)
	}
}

func TestRemoveStack_NoContainers(t *testing.T) {
	rt := fake.NewContainerRuntime()
	stores := deploy.Stores{Containers: fake.NewContainerStore(), Deployments: fake.NewDeploymentStore()}

	if err := deploy.RemoveStack(context.Background(), rt, stores, "search", nil, testClock()); err != nil {
		t.Fatalf("RemoveStack() error = %v", err)
	}
}
