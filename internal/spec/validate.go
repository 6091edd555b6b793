package spec

import (
	"fmt"
	"strings"
	"time"
)

// ValidateOptions tunes stack validation.
type ValidateOptions struct {
	// MinStartupBudget, when positive, requires every declared health check
	// to allow at least this long before the engine may mark the service
	// unhealthy. Set it to the slowest expected cold start.
	MinStartupBudget time.Duration
}

// Violation is a single validation failure, attributed to a service or
// volume when possible.
type Violation struct {
	Subject string
	Message string
}

func (v Violation) String() string {
	if v.Subject == "" {
		return v.Message
	}
	return v.Subject + ": " + v.Message
}

// ValidationError aggregates all violations found in one stack document.
type ValidationError struct {
	Stack      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "invalid stack spec"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("invalid stack spec %q: %s", e.Stack, strings.Join(parts, "; "))
}

// Validate checks the stack invariants: pinned images, resolvable volume
// references, well-formed port mappings with unique host ports, and sane
// health check parameters. It returns a *ValidationError listing every
// violation, or nil.
func Validate(stack StackSpec, opts ValidateOptions) error {
	var violations []Violation
	add := func(subject, format string, args ...any) {
		violations = append(violations, Violation{Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(stack.Name) == "" {
		add("", "stack name is required")
	}
	if len(stack.Services) == 0 {
		add("", "stack has no services")
	}

	for _, vol := range stack.Volumes {
		if strings.TrimSpace(vol.Driver) == "" {
			add("volume "+vol.Name, "volume driver is required")
		}
	}

	seenNames := make(map[string]bool, len(stack.Services))
	hostPortOwner := make(map[string]string)
	for _, svc := range stack.Services {
		subject := "service " + svc.Name

		name := strings.TrimSpace(svc.Name)
		switch {
		case name == "":
			add("", "service name is required")
		case strings.ContainsAny(name, " \t\n\r"):
			add(subject, "service name must not contain whitespace")
		case seenNames[name]:
			add(subject, "service name is not unique")
		default:
			seenNames[name] = true
		}

		validateImage(svc, add, subject)
		validateMounts(stack, svc, add, subject)
		validatePorts(svc, add, subject, hostPortOwner)
		validateHealthCheck(svc, opts, add, subject)
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Stack: stack.Name, Violations: violations}
}

func validateImage(svc ServiceSpec, add func(string, string, ...any), subject string) {
	image := strings.TrimSpace(svc.Image)
	if image == "" {
		add(subject, "image is required")
		return
	}
	if !ImagePinned(image) {
		add(subject, "image %q must carry a pinned tag or digest, not a floating tag", image)
	}
}

// ImagePinned reports whether an image reference is reproducible: it carries
// an explicit non-"latest" tag or a content digest.
func ImagePinned(image string) bool {
	if strings.Contains(image, "@sha256:") {
		return true
	}

	// A colon after the last slash separates the tag; earlier colons belong
	// to a registry host:port.
	ref := image
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		ref = ref[idx+1:]
	}
	_, tag, ok := strings.Cut(ref, ":")
	if !ok || tag == "" {
		return false
	}
	return tag != "latest"
}

func validateMounts(stack StackSpec, svc ServiceSpec, add func(string, string, ...any), subject string) {
	for _, m := range svc.Mounts {
		if m.Type != MountTypeVolume {
			continue
		}
		if strings.TrimSpace(m.Source) == "" {
			add(subject, "volume mount at %q has no source", m.Target)
			continue
		}
		if _, ok := stack.Volume(m.Source); !ok {
			add(subject, "volume %q is not declared in the stack", m.Source)
		}
	}
}

func validatePorts(svc ServiceSpec, add func(string, string, ...any), subject string, hostPortOwner map[string]string) {
	for _, p := range svc.Ports {
		if p.ContainerPort == 0 {
			add(subject, "port mapping has no container port")
			continue
		}
		if p.HostPort == 0 {
			continue // engine-assigned ephemeral port
		}
		key := fmt.Sprintf("%d/%s", p.HostPort, p.Protocol)
		if owner, taken := hostPortOwner[key]; taken {
			add(subject, "host port %s already published by service %s", key, owner)
			continue
		}
		hostPortOwner[key] = svc.Name
	}
}

func validateHealthCheck(svc ServiceSpec, opts ValidateOptions, add func(string, string, ...any), subject string) {
	hc := svc.HealthCheck
	if hc == nil {
		return
	}

	if len(hc.Test) == 0 {
		add(subject, "health check has no test command")
	}
	if hc.Interval <= 0 {
		add(subject, "health check interval must be positive")
	}
	if hc.Timeout <= 0 {
		add(subject, "health check timeout must be positive")
	}
	if hc.Retries < 1 {
		add(subject, "health check retries must be at least 1")
	}

	if opts.MinStartupBudget > 0 && hc.Interval > 0 && hc.Retries > 0 {
		if budget := hc.Budget(); budget < opts.MinStartupBudget {
			add(subject, "health check budget %s does not cover the %s startup floor", budget, opts.MinStartupBudget)
		}
	}
}
