package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/samplempc/internal/config"
	"github.com/san-kum/samplempc/internal/logging"
)

var (
	dataDir  string
	logLevel string
	noColor  bool

	algorithm   string
	samples     int
	noise       float64
	temperature float64
	seed        uint64
	configFile  string
	preset      string

	headless    bool
	lockstep    bool
	frequency   float64
	duration    float64
	fixedCamera bool
	showTraces  bool
	maxTraces   int

	iterations      int
	noiseGrid       []float64
	temperatureGrid []float64
	parallel        int

	svgSites  []string
	svgOutput string
	svgWidth  int
	svgHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "samplempc",
		Short:         "sampling-based model predictive control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".samplempc", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured logs")

	runCmd := &cobra.Command{
		Use:   "run [task]",
		Short: "run the real-time control loop",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask,
	}
	addPlannerFlags(runCmd)
	runCmd.Flags().BoolVar(&headless, "headless", false, "run without the viewer")
	runCmd.Flags().BoolVar(&lockstep, "lockstep", false, "plan every step before advancing instead of following the wall clock")
	runCmd.Flags().Float64Var(&frequency, "frequency", 0, "control frequency in Hz (0 uses the task's native rate)")
	runCmd.Flags().Float64Var(&duration, "duration", config.DefaultDuration, "simulated seconds to run")
	runCmd.Flags().BoolVar(&fixedCamera, "fixed-camera", false, "keep the first frame's framing")
	runCmd.Flags().BoolVar(&showTraces, "traces", true, "draw planned site traces")
	runCmd.Flags().IntVar(&maxTraces, "max-traces", config.DefaultMaxTraces, "planned traces kept on screen")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [task]",
		Short: "optimize open loop from the task's reset state",
		Args:  cobra.ExactArgs(1),
		RunE:  optimizeTask,
	}
	addPlannerFlags(optimizeCmd)
	optimizeCmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "optimization rounds")

	tuneCmd := &cobra.Command{
		Use:   "tune [task]",
		Short: "grid search the sampling noise (and temperature for mppi)",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneTask,
	}
	addPlannerFlags(tuneCmd)
	tuneCmd.Flags().IntVar(&iterations, "iterations", 30, "optimization rounds per grid point")
	tuneCmd.Flags().Float64SliceVar(&noiseGrid, "noise-grid", []float64{0.05, 0.1, 0.2, 0.5}, "noise levels to try")
	tuneCmd.Flags().Float64SliceVar(&temperatureGrid, "temperature-grid", []float64{0.001, 0.01, 0.1}, "temperatures to try (mppi)")
	tuneCmd.Flags().IntVar(&parallel, "parallel", 2, "grid points evaluated at once")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a run's trajectory as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "write a run's metadata and trajectory as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw a run's site paths as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringSliceVar(&svgSites, "sites", nil, "sites to draw (default all)")
	exportSVGCmd.Flags().StringVarP(&svgOutput, "output", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "list tasks and algorithms",
		RunE:  listTasks,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [task]",
		Short: "list available presets for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for task: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-10s %s, %d samples, noise %.2f\n", p, cfg.Algorithm, cfg.Planner.NumSamples, cfg.Planner.NoiseLevel)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, optimizeCmd, tuneCmd, listCmd, plotCmd, exportCSVCmd, exportCmd, exportSVGCmd, tasksCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPlannerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&algorithm, "algorithm", "ps", "sampling algorithm (ps, mppi)")
	cmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "candidates per iteration")
	cmd.Flags().Float64Var(&noise, "noise", config.DefaultNoise, "perturbation standard deviation")
	cmd.Flags().Float64Var(&temperature, "temperature", config.DefaultTemperature, "mppi temperature")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// buildConfig layers defaults, then the preset, then the config file, then
// any flag the user set explicitly.
func buildConfig(cmd *cobra.Command, taskName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(taskName, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(taskName))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	cfg.Task = taskName

	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if flags.Changed("samples") {
		cfg.Planner.NumSamples = samples
	}
	if flags.Changed("noise") {
		cfg.Planner.NoiseLevel = noise
	}
	if flags.Changed("temperature") {
		cfg.Planner.Temperature = temperature
	}
	if flags.Changed("seed") {
		cfg.Planner.Seed = seed
	}
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("duration") {
		cfg.Duration = duration
	}
	if flags.Changed("frequency") {
		cfg.Frequency = frequency
	}
	if flags.Changed("lockstep") {
		cfg.RealTime = !lockstep
	}
	if flags.Changed("fixed-camera") {
		cfg.Viewer.FixedCamera = fixedCamera
	}
	if flags.Changed("traces") {
		cfg.Viewer.ShowTraces = showTraces
	}
	if flags.Changed("max-traces") {
		cfg.Viewer.MaxTraces = maxTraces
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer, color bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level, noColor || !color), nil
}

// openLogFile sends logs to the data directory while the viewer owns the
// terminal.
func openLogFile() (*os.File, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dataDir, "samplempc.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
