package control

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/task"
)

var ErrUnknownAlgorithm = errors.New("control: unknown algorithm")

type factory struct {
	keys  []string
	build func(t task.Task, cfg Config) (Controller, error)
}

var registry = map[string]factory{
	"ps": {
		keys: []string{"num_samples", "noise_level", "seed"},
		build: func(t task.Task, cfg Config) (Controller, error) {
			ps, err := NewPredictiveSampling(t, cfg)
			if err != nil {
				return nil, err
			}
			return ps, nil
		},
	},
	"mppi": {
		keys: []string{"num_samples", "noise_level", "temperature", "seed"},
		build: func(t task.Task, cfg Config) (Controller, error) {
			m, err := NewMPPI(t, cfg)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	},
}

// Algorithms lists the registered algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys lists the keyword settings an algorithm accepts.
func Keys(name string) []string {
	return append([]string(nil), registry[name].keys...)
}

// New builds an algorithm by name from keyword settings. Keys the algorithm
// does not accept are rejected.
func New(name string, t task.Task, opts map[string]float64) (Controller, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownAlgorithm, name, Algorithms())
	}

	accepted := make(map[string]bool, len(f.keys))
	for _, k := range f.keys {
		accepted[k] = true
	}
	for k := range opts {
		if !accepted[k] {
			return nil, dynamo.InvalidConfigf("%s does not take %q", name, k)
		}
	}

	cfg := Config{
		NumSamples:  int(opts["num_samples"]),
		NoiseLevel:  opts["noise_level"],
		Temperature: opts["temperature"],
	}
	if n := opts["num_samples"]; n != math.Trunc(n) {
		return nil, dynamo.InvalidConfigf("num_samples must be an integer, got %v", n)
	}
	if s, ok := opts["seed"]; ok {
		if s < 0 || s != math.Trunc(s) {
			return nil, dynamo.InvalidConfigf("seed must be a non-negative integer, got %v", s)
		}
		cfg.Seed = uint64(s)
	}
	return f.build(t, cfg)
}
