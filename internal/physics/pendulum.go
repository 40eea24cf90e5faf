package physics

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Pendulum is a torque-driven pendulum with state [theta, omega].
// theta = 0 hangs straight down. The command is clamped to ControlLimit and
// scaled by Gear into a joint torque.
type Pendulum struct {
	Mass         float64
	Length       float64
	Damping      float64
	Gravity      float64
	Gear         float64
	ControlLimit float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:         DefaultMass,
		Length:       DefaultLength,
		Damping:      0.1,
		Gravity:      DefaultGravity,
		Gear:         1.0,
		ControlLimit: 5.0,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) ControlDim() int {
	return 1
}

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = p.Gear * clamp(u[0], p.ControlLimit)
	}
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / (p.Mass * p.Length * p.Length)

	return dynamo.State{omega, alpha}
}

func (p *Pendulum) Energy(x dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := p.Length * x[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(x[0]))
	return ke + pe
}

func (p *Pendulum) Sites() []string {
	return []string{"pivot", "tip"}
}

func (p *Pendulum) SitePos(name string, x dynamo.State) (dynamo.Vec3, bool) {
	switch name {
	case "pivot":
		return dynamo.Vec3{}, true
	case "tip":
		return dynamo.Vec3{p.Length * math.Sin(x[0]), 0, -p.Length * math.Cos(x[0])}, true
	}
	return dynamo.Vec3{}, false
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":          p.Mass,
		"length":        p.Length,
		"damping":       p.Damping,
		"gravity":       p.Gravity,
		"gear":          p.Gear,
		"control_limit": p.ControlLimit,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	case "gear":
		p.Gear = value
	case "control_limit":
		p.ControlLimit = value
	default:
		return dynamo.InvalidConfigf("unknown pendulum param: %s", name)
	}
	return nil
}
