package rollout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/task"
)

// Candidates per goroutine. A rollout is H x sim-steps integrator calls, so
// small chunks already amortize the fan-out.
const minChunk = 2

// Evaluator rolls candidates out in parallel. It holds no mutable state and
// may be shared.
type Evaluator struct {
	task task.Task
}

func NewEvaluator(t task.Task) *Evaluator {
	return &Evaluator{task: t}
}

func (e *Evaluator) Task() task.Task {
	return e.task
}

// Eval simulates every candidate from the same start state x. Each controls
// entry is (H-1) x control_dim. Divergence inside a candidate is not an
// error: the candidate is flagged, its remaining costs are +Inf and its
// remaining observations NaN.
func (e *Evaluator) Eval(ctx context.Context, x dynamo.State, controls []*mat.Dense) (*Batch, error) {
	model := e.task.Model()
	horizon := e.task.PlanningHorizon()
	nu := model.ControlDim()

	if len(controls) == 0 {
		return nil, dynamo.InvalidConfigf("rollout needs at least one candidate")
	}
	if len(x) != model.StateDim() {
		return nil, fmt.Errorf("%w: start state has %d entries, want %d", dynamo.ErrDimensionMismatch, len(x), model.StateDim())
	}
	for k, c := range controls {
		r, cols := c.Dims()
		if r != horizon-1 || cols != nu {
			return nil, fmt.Errorf("%w: candidate %d is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, k, r, cols, horizon-1, nu)
		}
	}

	k := len(controls)
	batch := &Batch{
		Costs:        mat.NewDense(k, horizon, nil),
		Observations: make([][][]float64, k),
		Controls:     make([]*mat.Dense, k),
		Diverged:     make([]bool, k),
		Traces:       make([][][]dynamo.Vec3, k),
	}

	start := x.Clone()
	err := dynamo.ParallelFor(ctx, k, minChunk, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.rollout(start, controls[i], i, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// rollout fills row i of every batch field; rows are disjoint across
// goroutines.
func (e *Evaluator) rollout(x0 dynamo.State, controls *mat.Dense, i int, batch *Batch) error {
	t := e.task
	model := t.Model()
	horizon := t.PlanningHorizon()
	sites := t.TraceSites()

	obs := make([][]float64, horizon)
	traces := make([][]dynamo.Vec3, horizon)
	record := func(step int, x dynamo.State) error {
		obs[step] = t.Observation(x)
		if len(sites) == 0 {
			return nil
		}
		traces[step] = make([]dynamo.Vec3, len(sites))
		for j, s := range sites {
			p, err := model.SitePos(s, x)
			if err != nil {
				return fmt.Errorf("candidate %d step %d: %w", i, step, err)
			}
			traces[step][j] = p
		}
		return nil
	}

	x := x0.Clone()
	diverged := false
	for step := 0; step < horizon-1; step++ {
		if err := record(step, x); err != nil {
			return err
		}
		u := dynamo.Control(mat.Row(nil, step, controls))
		batch.Costs.Set(i, step, t.RunningCost(x, u))

		next, err := t.Step(x, u)
		if err != nil {
			if !errors.Is(err, dynamo.ErrDivergentSimulation) {
				return err
			}
			diverged = true
			fillDiverged(batch.Costs, obs, i, step+1, len(obs[0]))
			break
		}
		x = next
	}

	if !diverged {
		if err := record(horizon-1, x); err != nil {
			return err
		}
		zero := make(dynamo.Control, model.ControlDim())
		batch.Costs.Set(i, horizon-1, t.RunningCost(x, zero)+t.TerminalCost(x))
	}

	batch.Observations[i] = obs
	batch.Controls[i] = mat.DenseCopyOf(controls)
	batch.Diverged[i] = diverged
	if len(sites) > 0 {
		batch.Traces[i] = traces
	}
	return nil
}

func fillDiverged(costs *mat.Dense, obs [][]float64, row, from, obsDim int) {
	inf := math.Inf(1)
	_, h := costs.Dims()
	for step := from; step < h; step++ {
		costs.Set(row, step, inf)
		nan := make([]float64, obsDim)
		for j := range nan {
			nan[j] = math.NaN()
		}
		obs[step] = nan
	}
}
