package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/samplempc/internal/config"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/experiment"
	"github.com/san-kum/samplempc/internal/optim"
	"github.com/san-kum/samplempc/internal/storage"
	"github.com/san-kum/samplempc/internal/viz"
)

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	logOut := os.Stderr
	if !headless {
		f, err := openLogFile()
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger, err := newLogger(cfg, logOut, headless)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	exp := experiment.New(experiment.Config{
		Task:      cfg.Task,
		Algorithm: cfg.Algorithm,
		Params:    cfg.AlgorithmParams(),
		Frequency: cfg.Frequency,
		Duration:  cfg.Duration,
		RealTime:  cfg.RealTime,
	}, logger)
	if err := exp.Setup(reg, nil); err != nil {
		return err
	}
	exp.AddMetrics(reg.DefaultMetrics(exp.Task())...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	var result *dynamo.Result
	if headless {
		fmt.Printf("running %s with %s...\n", cfg.Task, cfg.Algorithm)
		result, err = exp.Run(ctx)
	} else {
		result, err = runWithViewer(ctx, exp, cfg)
	}
	stopped := errors.Is(err, context.Canceled)
	if err != nil && !stopped {
		return err
	}
	if result == nil {
		return nil
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.RunMetadata{
		Task:      cfg.Task,
		Algorithm: cfg.Algorithm,
		Params:    cfg.AlgorithmParams(),
		Seed:      cfg.Planner.Seed,
		Timestep:  exp.Task().Model().Timestep(),
		Frequency: cfg.Frequency,
		Duration:  cfg.Duration,
		RealTime:  cfg.RealTime,
	}, result)
	if err != nil {
		return err
	}

	if stopped {
		fmt.Println("stopped early")
	}
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("control steps: %d\n", len(result.States))
	fmt.Printf("overruns: %d\n", result.Overruns)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return nil
}

// runWithViewer runs the loop in the background while the viewer owns the
// terminal. Quitting the viewer stops the loop.
func runWithViewer(ctx context.Context, exp *experiment.Experiment, cfg *config.Config) (*dynamo.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := exp.Task()
	stream := viz.NewStream(t.Model(), cfg.Frequency, cfg.Viewer.MaxTraces)
	loop := exp.GetLoop()
	loop.AddObserver(stream)
	loop.AddPlanObserver(stream)

	type outcome struct {
		result *dynamo.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := exp.Run(ctx)
		stream.Close()
		done <- outcome{res, err}
	}()

	model := viz.NewModel(t.Name(), stream, viz.Options{
		FixedCamera: cfg.Viewer.FixedCamera,
		ShowTraces:  cfg.Viewer.ShowTraces,
		MaxTraces:   cfg.Viewer.MaxTraces,
		TraceColor:  cfg.Viewer.TraceColor,
	})
	viewErr := viz.Run(model)
	cancel()
	out := <-done
	if viewErr != nil {
		return out.result, viewErr
	}
	return out.result, out.err
}

func optimizeTask(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr, true)
	if err != nil {
		return err
	}

	exp := experiment.New(experiment.Config{
		Task:       cfg.Task,
		Algorithm:  cfg.Algorithm,
		Params:     cfg.AlgorithmParams(),
		Iterations: cfg.Iterations,
	}, logger)
	if err := exp.Setup(experiment.NewRegistry(), nil); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := exp.RunOpenLoop(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	finite := make([]float64, 0, len(res.Costs))
	for _, c := range res.Costs {
		if !math.IsInf(c, 0) && !math.IsNaN(c) {
			finite = append(finite, c)
		}
	}
	if len(finite) > 1 {
		fmt.Println(asciigraph.Plot(finite,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("best candidate cost per iteration"),
		))
		fmt.Println()
	}

	fmt.Printf("iterations: %d in %v (%v each)\n", len(res.Costs), elapsed.Round(time.Millisecond),
		(elapsed / time.Duration(len(res.Costs))).Round(time.Microsecond))
	fmt.Printf("initial cost: %.4f\n", res.Costs[0])
	fmt.Printf("final cost: %.4f\n", res.Costs[len(res.Costs)-1])
	fmt.Printf("first control: %v\n", res.Params.First())
	return nil
}

func tuneTask(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr, true)
	if err != nil {
		return err
	}

	names := []string{"noise_level"}
	ranges := [][]float64{noiseGrid}
	if cfg.Algorithm == "mppi" {
		names = append(names, "temperature")
		ranges = append(ranges, temperatureGrid)
	}
	gs, err := optim.NewGridSearch(names, ranges, parallel)
	if err != nil {
		return err
	}

	objective := func(ctx context.Context, params map[string]float64) (float64, error) {
		exp := experiment.New(experiment.Config{
			Task:       cfg.Task,
			Algorithm:  cfg.Algorithm,
			Params:     params,
			Iterations: iterations,
		}, nil)
		if err := exp.Setup(experiment.NewRegistry(), nil); err != nil {
			return 0, err
		}
		res, err := exp.RunOpenLoop(ctx)
		if err != nil {
			return 0, err
		}
		return res.Costs[len(res.Costs)-1], nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("grid search start", "task", cfg.Task, "algorithm", cfg.Algorithm, "params", names, "iterations", iterations)
	best, score, trials, err := gs.Search(ctx, cfg.AlgorithmParams(), objective)
	if err != nil {
		return err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := ""
	for _, n := range names {
		header += n + "\t"
	}
	fmt.Fprintln(w, header+"COST\tERROR")
	for _, tr := range trials {
		row := ""
		for _, n := range names {
			row += fmt.Sprintf("%g\t", tr.Params[n])
		}
		errText := "-"
		if tr.Err != nil {
			errText = tr.Err.Error()
		}
		fmt.Fprintf(w, "%s%.4f\t%s\n", row, tr.Score, errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if math.IsInf(score, 1) {
		return fmt.Errorf("no grid point produced a finite cost")
	}
	fmt.Printf("\nbest: ")
	for _, n := range names {
		fmt.Printf("%s=%g ", n, best[n])
	}
	fmt.Printf("cost=%.4f\n", score)
	return nil
}
