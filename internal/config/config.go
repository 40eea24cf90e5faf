package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/logging"
	"github.com/san-kum/samplempc/internal/task"
)

const (
	DefaultDuration    = 10.0
	DefaultSamples     = 32
	DefaultNoise       = 0.1
	DefaultTemperature = 0.01
	DefaultIterations  = 100
	DefaultMaxTraces   = 5
)

type Config struct {
	Task       string        `yaml:"task"`
	Algorithm  string        `yaml:"algorithm"`
	Duration   float64       `yaml:"duration"`
	Frequency  float64       `yaml:"frequency"`
	RealTime   bool          `yaml:"real_time"`
	Iterations int           `yaml:"iterations"`
	LogLevel   string        `yaml:"log_level"`
	Planner    PlannerConfig `yaml:"planner"`
	Viewer     ViewerConfig  `yaml:"viewer"`
}

type PlannerConfig struct {
	NumSamples  int     `yaml:"num_samples"`
	NoiseLevel  float64 `yaml:"noise_level"`
	Temperature float64 `yaml:"temperature"`
	Seed        uint64  `yaml:"seed"`
}

type ViewerConfig struct {
	FixedCamera bool       `yaml:"fixed_camera"`
	ShowTraces  bool       `yaml:"show_traces"`
	MaxTraces   int        `yaml:"max_traces"`
	TraceColor  [4]float64 `yaml:"trace_color"`
}

func DefaultConfig() *Config {
	return &Config{
		Task:       "pendulum",
		Algorithm:  "ps",
		Duration:   DefaultDuration,
		RealTime:   true,
		Iterations: DefaultIterations,
		LogLevel:   "info",
		Planner: PlannerConfig{
			NumSamples:  DefaultSamples,
			NoiseLevel:  DefaultNoise,
			Temperature: DefaultTemperature,
		},
		Viewer: ViewerConfig{
			ShowTraces: true,
			MaxTraces:  DefaultMaxTraces,
			TraceColor: [4]float64{1, 1, 1, 0.5},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dynamo.InvalidConfigf("parse %s: %v", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AlgorithmParams is the keyword map handed to the algorithm registry.
func (c *Config) AlgorithmParams() map[string]float64 {
	params := map[string]float64{
		"num_samples": float64(c.Planner.NumSamples),
		"noise_level": c.Planner.NoiseLevel,
		"seed":        float64(c.Planner.Seed),
	}
	if c.Algorithm == "mppi" {
		params["temperature"] = c.Planner.Temperature
	}
	return params
}

func (c *Config) Validate() error {
	if !contains(task.Names(), c.Task) {
		return dynamo.InvalidConfigf("unknown task %q (have %v)", c.Task, task.Names())
	}
	if !contains(control.Algorithms(), c.Algorithm) {
		return dynamo.InvalidConfigf("unknown algorithm %q (have %v)", c.Algorithm, control.Algorithms())
	}
	if c.Planner.NumSamples <= 0 {
		return dynamo.InvalidConfigf("num_samples must be positive, got %d", c.Planner.NumSamples)
	}
	if c.Planner.NoiseLevel <= 0 {
		return dynamo.InvalidConfigf("noise_level must be positive, got %v", c.Planner.NoiseLevel)
	}
	if c.Algorithm == "mppi" && c.Planner.Temperature <= 0 {
		return dynamo.InvalidConfigf("temperature must be positive, got %v", c.Planner.Temperature)
	}
	if c.Duration <= 0 {
		return dynamo.InvalidConfigf("duration must be positive, got %v", c.Duration)
	}
	if c.Frequency < 0 {
		return dynamo.InvalidConfigf("frequency must be positive, got %v", c.Frequency)
	}
	if c.Iterations < 0 {
		return dynamo.InvalidConfigf("iterations must be non-negative, got %d", c.Iterations)
	}
	if c.Viewer.MaxTraces < 0 {
		return dynamo.InvalidConfigf("max_traces must be non-negative, got %d", c.Viewer.MaxTraces)
	}
	for _, v := range c.Viewer.TraceColor {
		if v < 0 || v > 1 {
			return dynamo.InvalidConfigf("trace_color components must be in [0, 1], got %v", c.Viewer.TraceColor)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
