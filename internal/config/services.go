package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/stackwatchd/stackwatch/internal/registry"
)

// ServiceDescriptor is one tracked service, enumerated at startup from
// the deployment's compose file and iterated by value each cycle.
type ServiceDescriptor struct {
	Name         string
	ContainerID  string
	Image        string
	RegistryKind registry.Kind
	RegistryRepo string
}

// serviceOverride is one entry of the optional services YAML file. It
// refines or excludes a compose service.
type serviceOverride struct {
	Name     string `yaml:"name"`
	Registry string `yaml:"registry,omitempty"`
	Repo     string `yaml:"repo,omitempty"`
	Exclude  bool   `yaml:"exclude,omitempty"`
}

type servicesFile struct {
	Services []serviceOverride `yaml:"services"`
}

// LoadServices parses the compose file into the tracked-service table,
// applying overrides from the services file when given. The result is
// sorted by name for deterministic iteration.
func LoadServices(ctx context.Context, composePath, overridePath string) ([]ServiceDescriptor, error) {
	body, err := os.ReadFile(composePath)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	overrides, err := loadOverrides(overridePath)
	if err != nil {
		return nil, err
	}

	descriptors, err := parseComposeServices(ctx, body)
	if err != nil {
		return nil, err
	}

	result := make([]ServiceDescriptor, 0, len(descriptors))
	for _, descriptor := range descriptors {
		override, ok := overrides[descriptor.Name]
		if ok && override.Exclude {
			continue
		}
		if ok {
			if override.Registry != "" {
				descriptor.RegistryKind = registry.Kind(override.Registry)
			}
			if override.Repo != "" {
				descriptor.RegistryRepo = override.Repo
			}
		}
		if descriptor.RegistryKind == registry.KindGitHub && descriptor.RegistryRepo == "" {
			return nil, fmt.Errorf("service %q: github registry kind requires a repo", descriptor.Name)
		}
		result = append(result, descriptor)
	}

	if len(result) == 0 {
		return nil, errors.New("no tracked services after applying overrides")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func parseComposeServices(ctx context.Context, body []byte) ([]ServiceDescriptor, error) {
	if len(body) == 0 {
		return nil, errors.New("compose file is empty")
	}

	details := types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "compose.yml",
				Content:  body,
			},
		},
		Environment: types.Mapping{},
	}

	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName("stackwatch", false)
	})
	if err != nil {
		return nil, fmt.Errorf("load compose: %w", err)
	}
	if len(project.Services) == 0 {
		return nil, errors.New("compose has no services")
	}

	descriptors := make([]ServiceDescriptor, 0, len(project.Services))
	for name, service := range project.Services {
		if service.Image == "" {
			return nil, fmt.Errorf("service %q missing image", name)
		}

		containerID := service.ContainerName
		if containerID == "" {
			containerID = name
		}

		descriptors = append(descriptors, ServiceDescriptor{
			Name:         name,
			ContainerID:  containerID,
			Image:        service.Image,
			RegistryKind: registry.InferKind(service.Image),
		})
	}

	return descriptors, nil
}

func loadOverrides(path string) (map[string]serviceOverride, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}

	var parsed servicesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse services file: %w", err)
	}

	overrides := make(map[string]serviceOverride, len(parsed.Services))
	for i, override := range parsed.Services {
		if override.Name == "" {
			return nil, fmt.Errorf("services entry %d: name is required", i)
		}
		if _, dup := overrides[override.Name]; dup {
			return nil, fmt.Errorf("service %q: duplicate override", override.Name)
		}
		switch override.Registry {
		case "", string(registry.KindLinuxserver), string(registry.KindGitHub), string(registry.KindGeneric):
		default:
			return nil, fmt.Errorf("service %q: unknown registry kind %q", override.Name, override.Registry)
		}
		overrides[override.Name] = override
	}
	return overrides, nil
}
