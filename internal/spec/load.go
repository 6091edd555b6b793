package spec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
)

const stackSpecFilename = "stack.yaml"

// Load parses a Compose-format stack document into a normalized StackSpec.
// An empty stackName keeps the document's own name.
func Load(ctx context.Context, data []byte, stackName string) (StackSpec, error) {
	configDetails := compose.ConfigDetails{
		ConfigFiles: []compose.ConfigFile{
			{Filename: stackSpecFilename, Content: data},
		},
	}

	project, err := loader.LoadWithContext(ctx, configDetails)
	if err != nil {
		return StackSpec{}, fmt.Errorf("parse stack spec: %w", err)
	}
	if len(project.Services) == 0 {
		return StackSpec{}, fmt.Errorf("stack spec has no services")
	}
	if trimmed := strings.TrimSpace(stackName); trimmed != "" {
		project.Name = trimmed
	}

	return Normalize(project), nil
}

// Normalize converts a compose Project into a canonical StackSpec.
func Normalize(project *compose.Project) StackSpec {
	out := StackSpec{Name: project.Name}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		svc := project.Services[name]
		if svc.Name == "" {
			svc.Name = name
		}
		out.Services = append(out.Services, NormalizeService(svc))
	}

	volNames := make([]string, 0, len(project.Volumes))
	for name := range project.Volumes {
		volNames = append(volNames, name)
	}
	sort.Strings(volNames)
	for _, name := range volNames {
		out.Volumes = append(out.Volumes, normalizeVolume(name, project.Volumes[name]))
	}

	return out
}

func normalizeVolume(name string, vol compose.VolumeConfig) VolumeSpec {
	driver := strings.TrimSpace(vol.Driver)
	if driver == "" {
		driver = "local"
	}
	return VolumeSpec{
		Name:       name,
		Driver:     driver,
		DriverOpts: copyStringMap(vol.DriverOpts),
		Labels:     copyStringMap(vol.Labels),
	}
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
