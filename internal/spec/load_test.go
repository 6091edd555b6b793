package spec

import (
	"context"
	"testing"
	"time"
)

const elasticsearchDoc = `
name: search
services:
  elasticsearch:
    image: docker.elastic.co/elasticsearch/elasticsearch:8.14.3
    container_name: searchdock-elasticsearch
    environment:
      - discovery.type=single-node
      - xpack.security.enabled=false
    ports:
      - "9200:9200"
    volumes:
      - esdata:/usr/share/elasticsearch/data
    healthcheck:
      test: ["CMD-SHELL", "curl -fsS http://localhost:9200/_cluster/health || exit 1"]
      interval: 10s
      timeout: 5s
      retries: 12
volumes:
  esdata:
    driver: local
`

func TestLoad_SingleNodeSearchStack(t *testing.T) {
	ctx := context.Background()

	stack, err := Load(ctx, []byte(elasticsearchDoc), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stack.Name != "search" {
		t.Fatalf("stack.Name = %q, want %q", stack.Name, "search")
	}

	svc, ok := stack.Service("elasticsearch")
	if !ok {
		t.Fatal("Service(elasticsearch) not found")
	}
	if svc.Image != "docker.elastic.co/elasticsearch/elasticsearch:8.14.3" {
		t.Fatalf("image = %q, want pinned elasticsearch image", svc.Image)
	}
	if svc.ContainerName != "searchdock-elasticsearch" {
		t.Fatalf("container name = %q, want searchdock-elasticsearch", svc.ContainerName)
	}

	wantEnv := []string{"discovery.type=single-node", "xpack.security.enabled=false"}
	if len(svc.Environment) != len(wantEnv) {
		t.Fatalf("environment = %v, want %v", svc.Environment, wantEnv)
	}
	for i, kv := range wantEnv {
		if svc.Environment[i] != kv {
			t.Fatalf("environment[%d] = %q, want %q", i, svc.Environment[i], kv)
		}
	}

	if len(svc.Ports) != 1 {
		t.Fatalf("ports len = %d, want 1", len(svc.Ports))
	}
	port := svc.Ports[0]
	if port.HostPort != 9200 || port.ContainerPort != 9200 || port.Protocol != "tcp" {
		t.Fatalf("port = %+v, want 9200:9200/tcp", port)
	}

	if len(svc.Mounts) != 1 {
		t.Fatalf("mounts len = %d, want 1", len(svc.Mounts))
	}
	mnt := svc.Mounts[0]
	if mnt.Type != MountTypeVolume || mnt.Source != "esdata" || mnt.Target != "/usr/share/elasticsearch/data" {
		t.Fatalf("mount = %+v, want esdata volume mount", mnt)
	}

	hc := svc.HealthCheck
	if hc == nil {
		t.Fatal("health check missing")
	}
	if hc.Interval != 10*time.Second || hc.Timeout != 5*time.Second || hc.Retries != 12 {
		t.Fatalf("health check = %+v, want 10s/5s/12", hc)
	}
	if got, want := hc.Budget(), 120*time.Second; got != want {
		t.Fatalf("Budget() = %v, want %v", got, want)
	}

	vol, ok := stack.Volume("esdata")
	if !ok {
		t.Fatal("Volume(esdata) not found")
	}
	if vol.Driver != "local" {
		t.Fatalf("volume driver = %q, want local", vol.Driver)
	}
}

func TestLoad_StackNameOverride(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`
name: from-document
services:
  search:
    image: opensearchproject/opensearch:2.14.0
`)

	stack, err := Load(ctx, doc, "override")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stack.Name != "override" {
		t.Fatalf("stack.Name = %q, want %q", stack.Name, "override")
	}
}

func TestLoad_NoServices(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`
name: empty
volumes:
  data:
`)

	if _, err := Load(ctx, doc, ""); err == nil {
		t.Fatal("Load() error = nil, want no-services error")
	}
}

func TestLoad_VolumeDriverDefaultsToLocal(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`
name: stack
services:
  search:
    image: opensearchproject/opensearch:2.14.0
volumes:
  data:
`)

	stack, err := Load(ctx, doc, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	vol, ok := stack.Volume("data")
	if !ok {
		t.Fatal("Volume(data) not found")
	}
	if vol.Driver != "local" {
		t.Fatalf("volume driver = %q, want local default", vol.Driver)
	}
}

func TestLoad_ServicesSorted(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`
name: stack
services:
  kibana:
    image: docker.elastic.co/kibana/kibana:8.14.3
  elasticsearch:
    image: docker.elastic.co/elasticsearch/elasticsearch:8.14.3
`)

	stack, err := Load(ctx, doc, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(stack.Services) != 2 {
		t.Fatalf("services len = %d, want 2", len(stack.Services))
	}
	if stack.Services[0].Name != "elasticsearch" || stack.Services[1].Name != "kibana" {
		t.Fatalf("service order = [%s %s], want sorted", stack.Services[0].Name, stack.Services[1].Name)
	}
}
