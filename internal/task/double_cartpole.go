package task

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/scene"
)

// TipTarget is the tip height of the fully upright double cart-pole.
const TipTarget = 4.0

// DoubleCartPole swings a two-link pendulum up while keeping the cart centred.
type DoubleCartPole struct {
	Base
}

func NewDoubleCartPole(horizon, simSteps int) (*DoubleCartPole, error) {
	model, err := scene.Load("double_cartpole")
	if err != nil {
		return nil, err
	}
	base, err := NewBase(model, horizon, simSteps, []string{"tip"})
	if err != nil {
		return nil, err
	}
	return &DoubleCartPole{Base: base}, nil
}

func (d *DoubleCartPole) Name() string { return "double_cartpole" }

// tipHeight is NaN when the model has no tip site, so a candidate scored on
// such a model loses every comparison instead of looking upright.
func (d *DoubleCartPole) tipHeight(x dynamo.State) float64 {
	tip, err := d.model.SitePos("tip", x)
	if err != nil {
		return math.NaN()
	}
	return tip[2]
}

func (d *DoubleCartPole) tipError(x dynamo.State) float64 {
	e := d.tipHeight(x) - TipTarget
	return e * e
}

func (d *DoubleCartPole) RunningCost(x dynamo.State, u dynamo.Control) float64 {
	return d.tipError(x) + x[0]*x[0] + 0.01*sumSq(x.Velocities()) + 0.01*sumSq(u)
}

func (d *DoubleCartPole) TerminalCost(x dynamo.State) float64 {
	return 10*d.tipError(x) + x[0]*x[0] + 0.01*sumSq(x.Velocities())
}

// Observation is [x, theta1, theta2, tip height].
func (d *DoubleCartPole) Observation(x dynamo.State) []float64 {
	return []float64{x[0], x[1], x[2], d.tipHeight(x)}
}
