package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/logging"
	"github.com/san-kum/samplempc/internal/mpc"
	"github.com/san-kum/samplempc/internal/task"
)

type Config struct {
	Task      string
	Algorithm string
	Params    map[string]float64

	// Closed loop.
	Steps     int
	Frequency float64
	Duration  float64
	RealTime  bool

	// Open loop.
	Iterations int
}

type Experiment struct {
	cfg        Config
	task       task.Task
	controller control.Controller
	loop       *mpc.Loop
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Experiment{cfg: cfg, logger: logger}
}

func (e *Experiment) Setup(reg *Registry, metrics []dynamo.Metric) error {
	t, err := reg.GetTask(e.cfg.Task)
	if err != nil {
		return err
	}
	c, err := reg.GetController(e.cfg.Algorithm, t, e.cfg.Params)
	if err != nil {
		return err
	}

	e.task = t
	e.controller = c
	e.loop = mpc.New(t, c, c.InitParams(), e.logger)
	e.AddMetrics(metrics...)
	return nil
}

// AddMetrics attaches metrics to the loop. Metrics that also watch plans
// are registered as plan observers.
func (e *Experiment) AddMetrics(metrics ...dynamo.Metric) {
	for _, m := range metrics {
		e.loop.AddMetric(m)
		if po, ok := m.(mpc.PlanObserver); ok {
			e.loop.AddPlanObserver(po)
		}
	}
}

func (e *Experiment) Task() task.Task                { return e.task }
func (e *Experiment) Controller() control.Controller { return e.controller }

// GetLoop returns the underlying loop for adding observers.
func (e *Experiment) GetLoop() *mpc.Loop {
	return e.loop
}

// Run executes the closed-loop experiment from the task's reset state,
// in real time or lockstep depending on the config.
func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.loop == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	x0 := e.task.ResetState()
	e.logger.Info("closed loop start",
		"task", e.task.Name(),
		"algorithm", e.controller.Name(),
		"samples", e.controller.NumSamples(),
		"real_time", e.cfg.RealTime,
	)

	if e.cfg.RealTime {
		return e.loop.Run(ctx, x0, mpc.Config{Frequency: e.cfg.Frequency, Duration: e.cfg.Duration})
	}

	steps := e.cfg.Steps
	if steps <= 0 {
		period := e.task.Model().Timestep() * float64(e.task.SimStepsPerControlStep())
		steps = int(e.cfg.Duration/period + 0.5)
	}
	if steps <= 0 {
		return nil, dynamo.InvalidConfigf("closed loop needs steps or a duration")
	}
	return e.loop.RunSteps(ctx, x0, steps)
}

// OpenLoopResult is the outcome of repeatedly optimizing from one fixed
// state without stepping the plant.
type OpenLoopResult struct {
	Costs        []float64
	Params       control.Params
	Observations [][]float64
	Controls     *mat.Dense
}

// RunOpenLoop optimizes from the reset state for cfg.Iterations rounds and
// reports the best candidate of each round.
func (e *Experiment) RunOpenLoop(ctx context.Context) (*OpenLoopResult, error) {
	if e.controller == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if e.cfg.Iterations <= 0 {
		return nil, dynamo.InvalidConfigf("iterations must be positive, got %d", e.cfg.Iterations)
	}

	x := e.task.ResetState()
	p := e.controller.InitParams()
	res := &OpenLoopResult{Costs: make([]float64, 0, e.cfg.Iterations)}

	for i := 0; i < e.cfg.Iterations; i++ {
		next, batch, err := e.controller.Optimize(ctx, x, p)
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", i, err)
		}
		p = next

		idx, cost, _ := batch.Best()
		res.Costs = append(res.Costs, cost)
		res.Observations = batch.Observations[idx]
		res.Controls = batch.Controls[idx]
	}
	res.Params = p

	e.logger.Info("open loop done",
		"task", e.task.Name(),
		"algorithm", e.controller.Name(),
		"iterations", e.cfg.Iterations,
		"initial_cost", res.Costs[0],
		"final_cost", res.Costs[len(res.Costs)-1],
	)
	return res, nil
}
