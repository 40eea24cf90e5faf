// Package task turns a physical model into a cost-annotated dynamics oracle
// for the sampling planners.
package task

import (
	"github.com/san-kum/samplempc/internal/dynamo"
)

// Task is the dynamics and cost contract consumed by rollouts and planners.
// Horizon and sim steps are fixed at construction. Implementations must be
// safe for concurrent use; every method is a pure function of its arguments.
type Task interface {
	Name() string
	Model() *dynamo.Model
	PlanningHorizon() int
	SimStepsPerControlStep() int
	TraceSites() []string

	ResetState() dynamo.State
	Step(x dynamo.State, u dynamo.Control) (dynamo.State, error)
	RunningCost(x dynamo.State, u dynamo.Control) float64
	TerminalCost(x dynamo.State) float64
	Observation(x dynamo.State) []float64
}

// Base holds the immutable plumbing shared by every task variant.
type Base struct {
	model      *dynamo.Model
	horizon    int
	simSteps   int
	traceSites []string
}

func NewBase(model *dynamo.Model, horizon, simSteps int, traceSites []string) (Base, error) {
	if model == nil {
		return Base{}, dynamo.InvalidConfigf("task needs a model")
	}
	if horizon < 2 {
		return Base{}, dynamo.InvalidConfigf("planning horizon must be >= 2, got %d", horizon)
	}
	if simSteps < 1 {
		return Base{}, dynamo.InvalidConfigf("sim steps per control step must be >= 1, got %d", simSteps)
	}
	for _, s := range traceSites {
		if !model.HasSite(s) {
			return Base{}, dynamo.InvalidConfigf("trace site %q not defined on %s", s, model.Name())
		}
	}

	return Base{
		model:      model,
		horizon:    horizon,
		simSteps:   simSteps,
		traceSites: append([]string(nil), traceSites...),
	}, nil
}

func (b Base) Model() *dynamo.Model        { return b.model }
func (b Base) PlanningHorizon() int        { return b.horizon }
func (b Base) SimStepsPerControlStep() int { return b.simSteps }
func (b Base) TraceSites() []string        { return append([]string(nil), b.traceSites...) }

// ControlPeriod is the simulated time covered by one control step.
func (b Base) ControlPeriod() float64 {
	return b.model.Timestep() * float64(b.simSteps)
}

// ResetState is the model's default pose at rest.
func (b Base) ResetState() dynamo.State {
	return b.model.DefaultState()
}

// Observation defaults to the full state.
func (b Base) Observation(x dynamo.State) []float64 {
	return x.Clone()
}

// Step applies u for SimStepsPerControlStep native steps. Divergence is
// returned as a SimulationError wrapping ErrDivergentSimulation.
func (b Base) Step(x dynamo.State, u dynamo.Control) (dynamo.State, error) {
	for i := 0; i < b.simSteps; i++ {
		next, err := b.model.Step(x, u)
		if err != nil {
			return next, &dynamo.SimulationError{
				Step:    i,
				Time:    float64(i) * b.model.Timestep(),
				State:   x,
				Wrapped: err,
			}
		}
		x = next
	}
	return x, nil
}

func sumSq(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}
