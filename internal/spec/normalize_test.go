package spec

import (
	"testing"
	"time"
)

func TestEqual_OrderIrrelevantFields(t *testing.T) {
	a := ServiceSpec{
		Name:        "elasticsearch",
		Image:       "docker.elastic.co/elasticsearch/elasticsearch:8.14.3",
		Environment: []string{"xpack.security.enabled=false", "discovery.type=single-node"},
		Ports: []PortMapping{
			{HostPort: 9300, ContainerPort: 9300, Protocol: "tcp"},
			{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"},
		},
		Mounts: []Mount{
			{Type: MountTypeVolume, Source: "eslogs", Target: "/var/log/elasticsearch"},
			{Type: MountTypeVolume, Source: "esdata", Target: "/usr/share/elasticsearch/data"},
		},
	}
	b := ServiceSpec{
		Name:        "elasticsearch",
		Image:       "docker.elastic.co/elasticsearch/elasticsearch:8.14.3",
		Environment: []string{"discovery.type=single-node", "xpack.security.enabled=false"},
		Ports: []PortMapping{
			{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"},
			{HostPort: 9300, ContainerPort: 9300, Protocol: "tcp"},
		},
		Mounts: []Mount{
			{Type: MountTypeVolume, Source: "esdata", Target: "/usr/share/elasticsearch/data"},
			{Type: MountTypeVolume, Source: "eslogs", Target: "/var/log/elasticsearch"},
		},
	}

	if !Equal(a, b) {
		t.Fatal("Equal() = false, want true for reordered but identical specs")
	}
}

func TestEqual_CommandOrderSignificant(t *testing.T) {
	a := ServiceSpec{Name: "s", Image: "img:1", Command: []string{"serve", "--verbose"}}
	b := ServiceSpec{Name: "s", Image: "img:1", Command: []string{"--verbose", "serve"}}

	if Equal(a, b) {
		t.Fatal("Equal() = true, want false for reordered command arguments")
	}
}

func TestEqual_DetectsImageChange(t *testing.T) {
	a := ServiceSpec{Name: "s", Image: "docker.elastic.co/elasticsearch/elasticsearch:8.14.3"}
	b := ServiceSpec{Name: "s", Image: "docker.elastic.co/elasticsearch/elasticsearch:8.15.0"}

	if Equal(a, b) {
		t.Fatal("Equal() = true, want false for different images")
	}
}

func TestEqual_DetectsHealthCheckChange(t *testing.T) {
	hc := func(retries int) *HealthCheck {
		return &HealthCheck{
			Test:     []string{"CMD", "curl", "-f", "http://localhost:9200"},
			Interval: 10 * time.Second,
			Timeout:  5 * time.Second,
			Retries:  retries,
		}
	}
	a := ServiceSpec{Name: "s", Image: "img:1", HealthCheck: hc(12)}
	b := ServiceSpec{Name: "s", Image: "img:1", HealthCheck: hc(3)}

	if Equal(a, b) {
		t.Fatal("Equal() = true, want false for different retry counts")
	}
	if !Equal(a, ServiceSpec{Name: "s", Image: "img:1", HealthCheck: hc(12)}) {
		t.Fatal("Equal() = false, want true for identical health checks")
	}
}

func TestCanonical_DoesNotMutateInput(t *testing.T) {
	original := ServiceSpec{
		Name:        "s",
		Image:       "img:1",
		Environment: []string{"b=2", "a=1"},
	}

	_ = Canonical(original)

	if original.Environment[0] != "b=2" {
		t.Fatalf("input mutated: environment = %v", original.Environment)
	}
}

func TestHealthCheckBudget(t *testing.T) {
	hc := &HealthCheck{Interval: 10 * time.Second, Retries: 12}
	if got, want := hc.Budget(), 2*time.Minute; got != want {
		t.Fatalf("Budget() = %v, want %v", got, want)
	}

	hc.StartPeriod = 30 * time.Second
	if got, want := hc.Budget(), 150*time.Second; got != want {
		t.Fatalf("Budget() with start period = %v, want %v", got, want)
	}

	var nilCheck *HealthCheck
	if nilCheck.Budget() != 0 {
		t.Fatalf("nil Budget() = %v, want 0", nilCheck.Budget())
	}
}
