package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/experiment"
	"github.com/san-kum/samplempc/internal/export"
	"github.com/san-kum/samplempc/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tALGO\tTIME\tDURATION\tSTEPS\tOVERRUNS\tTASK COST")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%d\t%d\t%.4f\n",
			run.ID,
			run.Task,
			run.Algorithm,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.ControlSteps,
			run.Overruns,
			run.Metrics["task_cost"],
		)
	}

	return w.Flush()
}

var stateCaptions = map[string][]string{
	"pendulum":        {"theta", "omega"},
	"cartpole":        {"cart position", "pole angle", "cart velocity", "pole angular velocity"},
	"double_cartpole": {"cart position", "theta1", "theta2", "cart velocity", "omega1", "omega2"},
	"drone":           {"x", "y", "theta", "vx", "vy", "omega"},
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	run, err := st.LoadRun(runID)
	if err != nil {
		return err
	}
	if len(run.States) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("task: %s (%s)\n", meta.Task, meta.Algorithm)
	fmt.Printf("samples: %d\n\n", len(run.States))

	numVars := len(run.States[0])
	if numVars > 6 {
		numVars = 6
	}
	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(run.States))
		for i := range run.States {
			data[i] = run.States[i][varIdx]
		}
		caption := fmt.Sprintf("x%d vs time", varIdx)
		if names, ok := stateCaptions[meta.Task]; ok && varIdx < len(names) {
			caption = names[varIdx]
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}

	var costs []float64
	for _, c := range run.PlanCosts {
		if !math.IsNaN(c) && !math.IsInf(c, 0) {
			costs = append(costs, c)
		}
	}
	if len(costs) > 1 {
		fmt.Println(asciigraph.Plot(costs,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("plan cost"),
		))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if _, err := st.Load(args[0]); err != nil {
		return err
	}
	f, err := os.Open(st.CSVPath(args[0]))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(os.Stdout, f)
	return err
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	run, err := st.LoadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, run)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	run, err := st.LoadRun(args[0])
	if err != nil {
		return err
	}
	t, err := experiment.NewRegistry().GetTask(meta.Task)
	if err != nil {
		return err
	}

	sites := svgSites
	if len(sites) == 0 {
		sites = t.Model().Sites()
	}
	paths, err := export.SitePaths(t.Model(), run.States, sites)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if svgOutput != "" {
		f, err := os.Create(svgOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.PathSVG(out, paths, svgWidth, svgHeight, nil)
}

func listTasks(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tHORIZON\tSIM STEPS\tTIMESTEP\tSTATE\tCONTROL")
	for _, name := range reg.ListTasks() {
		t, err := reg.GetTask(name)
		if err != nil {
			return err
		}
		m := t.Model()
		fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%d\t%d\n",
			name, t.PlanningHorizon(), t.SimStepsPerControlStep(), m.Timestep(), m.StateDim(), m.ControlDim())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\nalgorithms:")
	for _, a := range reg.ListAlgorithms() {
		fmt.Printf("  %s: %v\n", a, control.Keys(a))
	}
	return nil
}
