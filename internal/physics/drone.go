package physics

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Drone is a planar quadrotor with state [x, y, theta, vx, vy, omega] and
// controls [thrustLeft, thrustRight]. y points up.
type Drone struct {
	Mass, Inertia, ArmLength float64
	Gravity, DragCoeff       float64
	AngDrag                  float64
	MaxThrust                float64
}

func NewDrone() *Drone {
	return &Drone{
		Mass:      DefaultMass,
		Inertia:   0.1,
		ArmLength: 0.25,
		Gravity:   DefaultGravity,
		DragCoeff: 0.1,
		AngDrag:   0.05,
		MaxThrust: 15.0,
	}
}

func (d *Drone) StateDim() int   { return 6 }
func (d *Drone) ControlDim() int { return 2 }

func (d *Drone) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta, vx, vy, omega := x[2], x[3], x[4], x[5]

	thrustL, thrustR := 0.0, 0.0
	if len(u) >= 2 {
		thrustL, thrustR = u[0], u[1]
	} else if len(u) >= 1 {
		thrustL, thrustR = u[0]/2, u[0]/2
	}

	thrustL = math.Min(math.Max(0, thrustL), d.MaxThrust)
	thrustR = math.Min(math.Max(0, thrustR), d.MaxThrust)

	totalThrust := thrustL + thrustR
	torque := (thrustR - thrustL) * d.ArmLength

	sin, cos := math.Sin(theta), math.Cos(theta)
	fx := -totalThrust*sin - d.DragCoeff*vx
	fy := totalThrust*cos - d.Mass*d.Gravity - d.DragCoeff*vy

	ax := fx / d.Mass
	ay := fy / d.Mass
	alpha := (torque - d.AngDrag*omega) / d.Inertia

	return dynamo.State{vx, vy, omega, ax, ay, alpha}
}

func (d *Drone) HoverThrust() float64 {
	return d.Mass * d.Gravity / 2.0
}

func (d *Drone) Energy(x dynamo.State) float64 {
	y, vx, vy, omega := x[1], x[3], x[4], x[5]
	ke := 0.5 * d.Mass * (vx*vx + vy*vy)
	keRot := 0.5 * d.Inertia * omega * omega
	pe := d.Mass * d.Gravity * y
	return ke + keRot + pe
}

func (d *Drone) Sites() []string {
	return []string{"left_rotor", "body", "right_rotor"}
}

func (d *Drone) SitePos(name string, x dynamo.State) (dynamo.Vec3, bool) {
	px, py, theta := x[0], x[1], x[2]
	dx, dy := d.ArmLength*math.Cos(theta), d.ArmLength*math.Sin(theta)
	switch name {
	case "body":
		return dynamo.Vec3{px, 0, py}, true
	case "left_rotor":
		return dynamo.Vec3{px - dx, 0, py - dy}, true
	case "right_rotor":
		return dynamo.Vec3{px + dx, 0, py + dy}, true
	}
	return dynamo.Vec3{}, false
}

func (d *Drone) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":       d.Mass,
		"gravity":    d.Gravity,
		"drag":       d.DragCoeff,
		"ang_drag":   d.AngDrag,
		"arm_length": d.ArmLength,
		"inertia":    d.Inertia,
		"max_thrust": d.MaxThrust,
	}
}

func (d *Drone) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		d.Mass = value
	case "gravity":
		d.Gravity = value
	case "drag":
		d.DragCoeff = value
	case "ang_drag":
		d.AngDrag = value
	case "arm_length":
		d.ArmLength = value
	case "inertia":
		d.Inertia = value
	case "max_thrust":
		d.MaxThrust = value
	default:
		return dynamo.InvalidConfigf("unknown drone param: %s", name)
	}
	return nil
}
