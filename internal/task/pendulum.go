package task

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/scene"
)

// Pendulum swings a pendulum up from rest. The scene bounds the command to
// [-1, 1] and gears it to twice the torque that holds the pole horizontal.
type Pendulum struct {
	Base
}

func NewPendulum() (*Pendulum, error) {
	model, err := scene.Load("pendulum")
	if err != nil {
		return nil, err
	}
	return NewPendulumWithModel(model, 20, 10)
}

func NewPendulumWithModel(model *dynamo.Model, horizon, simSteps int) (*Pendulum, error) {
	base, err := NewBase(model, horizon, simSteps, []string{"tip"})
	if err != nil {
		return nil, err
	}
	return &Pendulum{Base: base}, nil
}

func (p *Pendulum) Name() string { return "pendulum" }

// distanceToUpright is zero at theta = pi.
func distanceToUpright(theta float64) float64 {
	err := theta - math.Pi
	c := math.Cos(err) - 1
	s := math.Sin(err)
	return c*c + s*s
}

func (p *Pendulum) RunningCost(x dynamo.State, u dynamo.Control) float64 {
	return distanceToUpright(x[0]) + 0.01*x[1]*x[1] + 0.001*sumSq(u)
}

func (p *Pendulum) TerminalCost(x dynamo.State) float64 {
	return distanceToUpright(x[0]) + 0.01*x[1]*x[1]
}

// Observation is [theta, omega].
func (p *Pendulum) Observation(x dynamo.State) []float64 {
	return []float64{x[0], x[1]}
}
