package config

import "sort"

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"swingup": {
			Task: "pendulum", Algorithm: "ps", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 32, NoiseLevel: 0.1},
		},
		"mppi": {
			Task: "pendulum", Algorithm: "mppi", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 64, NoiseLevel: 0.3, Temperature: 0.01},
		},
		"starved": {
			Task: "pendulum", Algorithm: "ps", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 4, NoiseLevel: 0.05},
		},
	},
	"cartpole": {
		"swingup": {
			Task: "cartpole", Algorithm: "ps", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 128, NoiseLevel: 0.3},
		},
		"mppi": {
			Task: "cartpole", Algorithm: "mppi", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 128, NoiseLevel: 0.5, Temperature: 0.1},
		},
	},
	"double_cartpole": {
		"swingup": {
			Task: "double_cartpole", Algorithm: "ps", Duration: 20.0,
			Planner: PlannerConfig{NumSamples: 256, NoiseLevel: 0.5},
		},
	},
	"drone": {
		"hover": {
			Task: "drone", Algorithm: "mppi", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 64, NoiseLevel: 0.5, Temperature: 0.1},
		},
		"hover_ps": {
			Task: "drone", Algorithm: "ps", Duration: 10.0,
			Planner: PlannerConfig{NumSamples: 64, NoiseLevel: 0.5},
		},
	},
}

// GetPreset returns a full config: defaults overlaid with the preset's
// task, algorithm, duration and planner settings. Nil if unknown.
func GetPreset(taskName, preset string) *Config {
	taskPresets, ok := Presets[taskName]
	if !ok {
		return nil
	}
	p, ok := taskPresets[preset]
	if !ok {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Task = p.Task
	cfg.Algorithm = p.Algorithm
	cfg.Duration = p.Duration
	cfg.Planner = p.Planner
	return cfg
}

func ListPresets(taskName string) []string {
	taskPresets, ok := Presets[taskName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(taskPresets))
	for name := range taskPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
