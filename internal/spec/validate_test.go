package spec

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validStack() StackSpec {
	return StackSpec{
		Name: "search",
		Services: []ServiceSpec{{
			Name:        "elasticsearch",
			Image:       "docker.elastic.co/elasticsearch/elasticsearch:8.14.3",
			Environment: []string{"discovery.type=single-node"},
			Mounts: []Mount{{
				Type:   MountTypeVolume,
				Source: "esdata",
				Target: "/usr/share/elasticsearch/data",
			}},
			Ports: []PortMapping{{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"}},
			HealthCheck: &HealthCheck{
				Test:     []string{"CMD-SHELL", "curl -fsS http://localhost:9200/_cluster/health || exit 1"},
				Interval: 10 * time.Second,
				Timeout:  5 * time.Second,
				Retries:  12,
			},
		}},
		Volumes: []VolumeSpec{{Name: "esdata", Driver: "local"}},
	}
}

func TestValidate_ValidStack(t *testing.T) {
	if err := Validate(validStack(), ValidateOptions{}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_StartupFloorSatisfied(t *testing.T) {
	err := Validate(validStack(), ValidateOptions{MinStartupBudget: 90 * time.Second})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil for 120s budget over 90s floor", err)
	}
}

func TestValidate_StartupFloorViolated(t *testing.T) {
	stack := validStack()
	stack.Services[0].HealthCheck.Retries = 3

	err := Validate(stack, ValidateOptions{MinStartupBudget: 90 * time.Second})
	assertViolation(t, err, "startup floor")
}

func TestValidate_FloatingImage(t *testing.T) {
	stack := validStack()
	stack.Services[0].Image = "docker.elastic.co/elasticsearch/elasticsearch:latest"

	assertViolation(t, Validate(stack, ValidateOptions{}), "floating tag")
}

func TestValidate_UndeclaredVolume(t *testing.T) {
	stack := validStack()
	stack.Services[0].Mounts[0].Source = "missing"

	assertViolation(t, Validate(stack, ValidateOptions{}), "not declared")
}

func TestValidate_DuplicateHostPort(t *testing.T) {
	stack := validStack()
	stack.Services = append(stack.Services, ServiceSpec{
		Name:  "opensearch",
		Image: "opensearchproject/opensearch:2.14.0",
		Ports: []PortMapping{{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"}},
	})

	assertViolation(t, Validate(stack, ValidateOptions{}), "already published")
}

func TestValidate_DuplicateServiceName(t *testing.T) {
	stack := validStack()
	dup := stack.Services[0]
	dup.Ports = nil
	stack.Services = append(stack.Services, dup)

	assertViolation(t, Validate(stack, ValidateOptions{}), "not unique")
}

func TestValidate_HealthCheckWithoutTest(t *testing.T) {
	stack := validStack()
	stack.Services[0].HealthCheck.Test = nil

	assertViolation(t, Validate(stack, ValidateOptions{}), "no test command")
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	stack := validStack()
	stack.Services[0].Image = "elasticsearch"
	stack.Services[0].Mounts[0].Source = "missing"

	var verr *ValidationError
	if !errors.As(Validate(stack, ValidateOptions{}), &verr) {
		t.Fatal("Validate() error is not *ValidationError")
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("violations = %v, want 2 entries", verr.Violations)
	}
}

func TestImagePinned(t *testing.T) {
	cases := []struct {
		image string
		want  bool
	}{
		{"docker.elastic.co/elasticsearch/elasticsearch:8.14.3", true},
		{"elasticsearch@sha256:0000000000000000000000000000000000000000000000000000000000000000", true},
		{"registry:5000/search/engine:1.0", true},
		{"elasticsearch", false},
		{"elasticsearch:latest", false},
		{"registry:5000/search/engine", false},
		{"elasticsearch:", false},
	}
	for _, tc := range cases {
		if got := ImagePinned(tc.image); got != tc.want {
			t.Errorf("ImagePinned(%q) = %v, want %v", tc.image, got, tc.want)
		}
	}
}

func assertViolation(t *testing.T, err error, fragment string) {
	t.Helper()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	for _, v := range verr.Violations {
		if strings.Contains(v.Message, fragment) {
			return
		}
	}
	t.Fatalf("violations %v do not mention %q", verr.Violations, fragment)
}
