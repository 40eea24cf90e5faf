// Package scene loads declarative model descriptions into [dynamo.Model]s.
package scene

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/integrators"
	"github.com/san-kum/samplempc/internal/physics"
)

//go:embed scenes/*.yaml
var builtin embed.FS

// Spec is the YAML form of a scene.
type Spec struct {
	Name       string             `yaml:"name"`
	System     string             `yaml:"system"`
	Integrator string             `yaml:"integrator"`
	Timestep   float64            `yaml:"timestep"`
	Params     map[string]float64 `yaml:"params"`
}

// Build constructs a fresh model. Each call returns independent system state,
// so parameter overrides never leak between models.
func (s *Spec) Build() (*dynamo.Model, error) {
	sys, err := physics.New(s.System)
	if err != nil {
		return nil, err
	}

	integName := s.Integrator
	if integName == "" {
		integName = "rk4"
	}
	integ, err := integrators.New(integName)
	if err != nil {
		return nil, err
	}

	if len(s.Params) > 0 {
		cfg, ok := sys.(dynamo.Configurable)
		if !ok {
			return nil, dynamo.InvalidConfigf("scene %q: system %s takes no params", s.Name, s.System)
		}
		keys := make([]string, 0, len(s.Params))
		for k := range s.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := cfg.SetParam(k, s.Params[k]); err != nil {
				return nil, fmt.Errorf("scene %q: %w", s.Name, err)
			}
		}
	}

	name := s.Name
	if name == "" {
		name = s.System
	}
	return dynamo.NewModel(name, sys, integ, s.Timestep)
}

// Parse decodes a YAML scene.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, dynamo.InvalidConfigf("parse scene: %v", err)
	}
	if spec.System == "" {
		return nil, dynamo.InvalidConfigf("scene %q: system is required", spec.Name)
	}
	return &spec, nil
}

// Load builds one of the embedded scenes by name.
func Load(name string) (*dynamo.Model, error) {
	data, err := builtin.ReadFile(path.Join("scenes", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: scene %q", dynamo.ErrUnknownModel, name)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

// LoadFile builds a scene from a YAML file on disk.
func LoadFile(file string) (*dynamo.Model, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

// Names lists the embedded scenes.
func Names() []string {
	entries, err := builtin.ReadDir("scenes")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}
