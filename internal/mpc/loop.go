package mpc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/logging"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

// Planner is the one controller operation the loop needs.
type Planner interface {
	Optimize(ctx context.Context, x dynamo.State, p control.Params) (control.Params, *rollout.Batch, error)
}

// PlanReport describes one finished plan.
type PlanReport struct {
	Step     int
	Lag      int
	Cost     float64
	Duration time.Duration
	Batch    *rollout.Batch
}

type PlanObserver interface {
	OnPlan(r PlanReport)
}

type Config struct {
	// Frequency is the control rate in Hz. Zero uses the task's native rate,
	// 1 / (timestep * sim steps per control step).
	Frequency float64
	// Duration is the simulated time to run for. Zero runs until the
	// context is done.
	Duration float64
}

// Stats summarizes a run. LastCost is NaN until the first plan lands.
type Stats struct {
	ControlSteps int
	Plans        int
	Overruns     int
	LastCost     float64
	LastPlanTime time.Duration
	MeanPlanTime time.Duration
}

type Loop struct {
	task    task.Task
	planner Planner
	logger  *slog.Logger

	metrics       []dynamo.Metric
	observers     []dynamo.Observer
	planObservers []PlanObserver

	params atomic.Pointer[control.Params]

	mu    sync.Mutex
	state dynamo.State
	time  float64
	ctrl  dynamo.Control
	stats Stats
	total time.Duration
}

// New builds a loop that starts from params. A nil logger discards output.
func New(t task.Task, planner Planner, params control.Params, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.Discard()
	}
	l := &Loop{
		task:    t,
		planner: planner,
		logger:  logger,
		ctrl:    make(dynamo.Control, t.Model().ControlDim()),
	}
	p := params.Clone()
	l.params.Store(&p)
	return l
}

func (l *Loop) AddMetric(m dynamo.Metric)      { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(o dynamo.Observer)  { l.observers = append(l.observers, o) }
func (l *Loop) AddPlanObserver(o PlanObserver) { l.planObservers = append(l.planObservers, o) }

// Params returns the plan the loop is currently following.
func (l *Loop) Params() control.Params {
	return *l.params.Load()
}

// State returns a copy of the plant state and its simulated time.
func (l *Loop) State() (dynamo.State, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone(), l.time
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) period(cfg Config) (time.Duration, int, error) {
	dt := l.task.Model().Timestep()
	freq := cfg.Frequency
	if freq == 0 {
		freq = 1 / (dt * float64(l.task.SimStepsPerControlStep()))
	}
	if freq < 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, 0, dynamo.InvalidConfigf("frequency must be positive, got %v", cfg.Frequency)
	}
	if cfg.Duration < 0 {
		return 0, 0, dynamo.InvalidConfigf("duration must be non-negative, got %v", cfg.Duration)
	}

	seconds := 1 / freq
	steps := int(math.Round(seconds / dt))
	if steps < 1 {
		steps = 1
	}
	return time.Duration(seconds * float64(time.Second)), steps, nil
}

func (l *Loop) reset(x0 dynamo.State) {
	l.mu.Lock()
	l.state = x0.Clone()
	l.time = 0
	l.stats = Stats{LastCost: math.NaN()}
	l.total = 0
	l.mu.Unlock()

	for _, m := range l.metrics {
		m.Reset()
	}
}

// advance steps the plant n native steps holding u.
func (l *Loop) advance(u dynamo.Control, n int) error {
	model := l.task.Model()
	for i := 0; i < n; i++ {
		l.mu.Lock()
		x, t := l.state, l.time
		l.mu.Unlock()

		for _, m := range l.metrics {
			m.Observe(x, u, t)
		}
		for _, o := range l.observers {
			o.OnStep(x, u, t)
		}

		next, err := model.Step(x, u)
		if err != nil {
			return &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: err}
		}

		l.mu.Lock()
		l.state = next
		l.time = t + model.Timestep()
		l.mu.Unlock()
	}
	return nil
}

func (l *Loop) record(res *dynamo.Result, u dynamo.Control) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res.States = append(res.States, l.state.Clone())
	res.Controls = append(res.Controls, u.Clone())
	res.Times = append(res.Times, l.time)
	res.PlanCosts = append(res.PlanCosts, l.stats.LastCost)
	l.stats.ControlSteps++
}

func (l *Loop) finish(res *dynamo.Result) *dynamo.Result {
	res.Metrics = make(map[string]float64, len(l.metrics))
	for _, m := range l.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Overruns = l.Stats().Overruns
	return res
}

// accept installs a finished plan that was computed lag periods ago and
// returns the control to hold for the coming period.
func (l *Loop) accept(p control.Params, batch *rollout.Batch, step, lag int, took time.Duration) dynamo.Control {
	current := control.Shift(p, lag)
	l.params.Store(&current)

	cost := math.Inf(1)
	if batch != nil {
		_, cost, _ = batch.Best()
	}

	l.mu.Lock()
	l.stats.Plans++
	l.stats.LastCost = cost
	l.stats.LastPlanTime = took
	l.total += took
	l.stats.MeanPlanTime = l.total / time.Duration(l.stats.Plans)
	l.mu.Unlock()

	report := PlanReport{Step: step, Lag: lag, Cost: cost, Duration: took, Batch: batch}
	for _, o := range l.planObservers {
		o.OnPlan(report)
	}
	return current.First()
}

// RunSteps plans and steps in lockstep for n control steps. Each step
// optimizes from the current state, applies the first control for one
// control period, then shifts the plan by one for the next warm start.
func (l *Loop) RunSteps(ctx context.Context, x0 dynamo.State, n int) (*dynamo.Result, error) {
	_, steps, err := l.period(Config{})
	if err != nil {
		return nil, err
	}
	l.reset(x0)
	res := &dynamo.Result{}

	for k := 0; k < n; k++ {
		if err := ctx.Err(); err != nil {
			return l.finish(res), err
		}

		x, _ := l.State()
		start := time.Now()
		planned, batch, err := l.planner.Optimize(ctx, x, l.Params())
		if err != nil {
			l.logger.Error("planning failed", "step", k, "err", err)
			return l.finish(res), err
		}
		// Lag 0 applies row 0; the shift for the next plan happens below.
		u := l.accept(planned, batch, k, 0, time.Since(start))
		l.record(res, u)

		if err := l.advance(u, steps); err != nil {
			l.logger.Error("plant diverged", "step", k, "err", err)
			return l.finish(res), err
		}

		next := control.Shift(l.Params(), 1)
		l.params.Store(&next)
	}
	return l.finish(res), nil
}

type planResult struct {
	params control.Params
	batch  *rollout.Batch
	err    error
	step   int
	took   time.Duration
}

// Run drives the loop against a wall-clock ticker until cfg.Duration of
// simulated time has elapsed or ctx is done. Planning runs concurrently with
// plant stepping.
func (l *Loop) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*dynamo.Result, error) {
	period, steps, err := l.period(cfg)
	if err != nil {
		return nil, err
	}
	l.reset(x0)
	res := &dynamo.Result{}

	planCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	results := make(chan planResult, 1)
	inFlight := false
	launch := func(step int) {
		x, _ := l.State()
		p := l.Params()
		inFlight = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			planned, batch, err := l.planner.Optimize(planCtx, x, p)
			results <- planResult{params: planned, batch: batch, err: err, step: step, took: time.Since(start)}
		}()
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	u := l.Params().First()
	dt := l.task.Model().Timestep()
	periodSim := float64(steps) * dt

	for k := 0; ; k++ {
		select {
		case r := <-results:
			inFlight = false
			if r.err != nil {
				if ctx.Err() != nil {
					return l.finish(res), ctx.Err()
				}
				l.logger.Error("planning failed", "step", r.step, "err", r.err)
				return l.finish(res), fmt.Errorf("plan from step %d: %w", r.step, r.err)
			}
			u = l.accept(r.params, r.batch, r.step, k-r.step, r.took)
		default:
			if inFlight {
				l.mu.Lock()
				l.stats.Overruns++
				overruns := l.stats.Overruns
				l.mu.Unlock()
				l.logger.Warn("planning overrun", "overrun", overruns, "period", period, "step", k, "err", dynamo.ErrPlanningOverrun)
			}
		}

		if !inFlight {
			launch(k)
		}

		l.record(res, u)
		if err := l.advance(u, steps); err != nil {
			l.logger.Error("plant diverged", "step", k, "err", err)
			return l.finish(res), err
		}

		if cfg.Duration > 0 && float64(k+1)*periodSim >= cfg.Duration-dt/2 {
			return l.finish(res), nil
		}

		select {
		case <-ctx.Done():
			return l.finish(res), ctx.Err()
		case <-ticker.C:
		}
	}
}
