package main

import (
	"testing"

	"searchdock/internal/spec"
)

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		name  string
		ports []spec.PortMapping
		want  string
		ok    bool
	}{
		{
			name:  "published port",
			ports: []spec.PortMapping{{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"}},
			want:  "http://localhost:9200/",
			ok:    true,
		},
		{
			name: "ephemeral host port skipped",
			ports: []spec.PortMapping{
				{HostPort: 0, ContainerPort: 9300, Protocol: "tcp"},
				{HostPort: 9200, ContainerPort: 9200, Protocol: "tcp"},
			},
			want: "http://localhost:9200/",
			ok:   true,
		},
		{
			name:  "only ephemeral ports",
			ports: []spec.PortMapping{{HostPort: 0, ContainerPort: 9200, Protocol: "tcp"}},
			ok:    false,
		},
		{
			name: "no ports",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url, ok := endpointURL(spec.ServiceSpec{Name: "elasticsearch", Ports: tc.ports})
			if ok != tc.ok || url != tc.want {
				t.Fatalf("endpointURL() = (%q, %v), want (%q, %v)", url, ok, tc.want, tc.ok)
			}
		})
	}
}
