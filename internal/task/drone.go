package task

import (
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/physics"
	"github.com/san-kum/samplempc/internal/scene"
)

// Drone climbs to and holds a hover point. Controls are per-rotor thrust
// offsets from the hover thrust, so a zero plan is a hover.
type Drone struct {
	Base
	hover  float64
	target [2]float64
}

func NewDrone() (*Drone, error) {
	model, err := scene.Load("drone")
	if err != nil {
		return nil, err
	}
	base, err := NewBase(model, 15, 5, []string{"body"})
	if err != nil {
		return nil, err
	}

	hover := 0.0
	if d, ok := model.System().(*physics.Drone); ok {
		hover = d.HoverThrust()
	}
	return &Drone{Base: base, hover: hover, target: [2]float64{0, 1}}, nil
}

func (d *Drone) Name() string { return "drone" }

func (d *Drone) thrust(u dynamo.Control) dynamo.Control {
	out := make(dynamo.Control, len(u))
	for i, v := range u {
		out[i] = d.hover + v
	}
	return out
}

func (d *Drone) Step(x dynamo.State, u dynamo.Control) (dynamo.State, error) {
	return d.Base.Step(x, d.thrust(u))
}

func (d *Drone) positionError(x dynamo.State) float64 {
	dx := x[0] - d.target[0]
	dy := x[1] - d.target[1]
	return dx*dx + dy*dy
}

func (d *Drone) RunningCost(x dynamo.State, u dynamo.Control) float64 {
	return d.positionError(x) + 0.1*x[2]*x[2] + 0.01*sumSq(x.Velocities()) + 0.001*sumSq(u)
}

func (d *Drone) TerminalCost(x dynamo.State) float64 {
	return 10*d.positionError(x) + 0.1*x[2]*x[2] + 0.01*sumSq(x.Velocities())
}
