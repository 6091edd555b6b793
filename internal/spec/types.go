package spec

import "time"

// ServiceSpec is a normalized, JSON-serializable description of one service
// in a stack document.
type ServiceSpec struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ContainerName string            `json:"container_name,omitempty"`
	Command       []string          `json:"command,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty"`
	Environment   []string          `json:"environment,omitempty"`
	Mounts        []Mount           `json:"mounts,omitempty"`
	Ports         []PortMapping     `json:"ports,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	RestartPolicy string            `json:"restart_policy,omitempty"`
	HealthCheck   *HealthCheck      `json:"health_check,omitempty"`
}

// MountType distinguishes named-volume mounts from host bind mounts.
type MountType string

const (
	MountTypeVolume MountType = "volume"
	MountTypeBind   MountType = "bind"
)

type Mount struct {
	Type     MountType `json:"type"`
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	ReadOnly bool      `json:"read_only,omitempty"`
}

type PortMapping struct {
	HostPort      uint16 `json:"host_port"`
	ContainerPort uint16 `json:"container_port"`
	Protocol      string `json:"protocol"`
}

type HealthCheck struct {
	Test        []string      `json:"test"`
	Interval    time.Duration `json:"interval"`
	Timeout     time.Duration `json:"timeout"`
	Retries     int           `json:"retries"`
	StartPeriod time.Duration `json:"start_period"`
}

// Budget is the longest time the engine may take before marking the
// container unhealthy: the start period plus one full round of probes.
func (h *HealthCheck) Budget() time.Duration {
	if h == nil {
		return 0
	}
	return h.StartPeriod + h.Interval*time.Duration(h.Retries)
}

// VolumeSpec is a named, durably-backed volume declared in a stack document.
type VolumeSpec struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	DriverOpts map[string]string `json:"driver_opts,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// StackSpec is a fully parsed and normalized stack document.
type StackSpec struct {
	Name     string        `json:"name"`
	Services []ServiceSpec `json:"services"`
	Volumes  []VolumeSpec  `json:"volumes,omitempty"`
}

// Service returns the service with the given name, if present.
func (s StackSpec) Service(name string) (ServiceSpec, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceSpec{}, false
}

// Volume returns the declared volume with the given name, if present.
func (s StackSpec) Volume(name string) (VolumeSpec, bool) {
	for _, vol := range s.Volumes {
		if vol.Name == name {
			return vol, true
		}
	}
	return VolumeSpec{}, false
}
