package physics

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// CartPole is a cart on a rail carrying a uniform pole. The state is
// [x, theta, xdot, omega] with theta = 0 pointing straight up. PoleLength is
// the hinge-to-centre-of-mass distance, half the pole.
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
	CartDamp   float64
	ForceLimit float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 0.5,
		Gravity:    DefaultGravity,
		CartDamp:   0.1,
		ForceLimit: 10.0,
	}
}

func (c *CartPole) StateDim() int {
	return 4
}

func (c *CartPole) ControlDim() int {
	return 1
}

func (c *CartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[1]
	vel := x[2]
	omega := x[3]

	force := 0.0
	if len(u) > 0 {
		force = clamp(u[0], c.ForceLimit)
	}
	force -= c.CartDamp * vel

	mc := c.CartMass
	mp := c.PoleMass
	l := c.PoleLength
	g := c.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	thetaacc := (g*sint - cost*temp) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	xacc := temp - mp*l*thetaacc*cost/(mc+mp)

	return dynamo.State{vel, omega, xacc, thetaacc}
}

func (c *CartPole) Energy(x dynamo.State) float64 {
	theta, vel, omega := x[1], x[2], x[3]
	l := c.PoleLength
	ke := 0.5*(c.CartMass+c.PoleMass)*vel*vel +
		c.PoleMass*l*vel*omega*math.Cos(theta) +
		0.5*(4.0/3.0)*c.PoleMass*l*l*omega*omega
	pe := c.PoleMass * c.Gravity * l * math.Cos(theta)
	return ke + pe
}

// DefaultState hangs the pole below the cart.
func (c *CartPole) DefaultState() dynamo.State {
	return dynamo.State{0, math.Pi, 0, 0}
}

func (c *CartPole) Sites() []string {
	return []string{"cart", "tip"}
}

func (c *CartPole) SitePos(name string, x dynamo.State) (dynamo.Vec3, bool) {
	switch name {
	case "cart":
		return dynamo.Vec3{x[0], 0, 0}, true
	case "tip":
		return dynamo.Vec3{x[0] + 2*c.PoleLength*math.Sin(x[1]), 0, 2 * c.PoleLength * math.Cos(x[1])}, true
	}
	return dynamo.Vec3{}, false
}

func (c *CartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   c.CartMass,
		"pole_mass":   c.PoleMass,
		"pole_length": c.PoleLength,
		"gravity":     c.Gravity,
		"cart_damp":   c.CartDamp,
		"force_limit": c.ForceLimit,
	}
}

func (c *CartPole) SetParam(name string, value float64) error {
	switch name {
	case "cart_mass":
		c.CartMass = value
	case "pole_mass":
		c.PoleMass = value
	case "pole_length":
		c.PoleLength = value
	case "gravity":
		c.Gravity = value
	case "cart_damp":
		c.CartDamp = value
	case "force_limit":
		c.ForceLimit = value
	default:
		return dynamo.InvalidConfigf("unknown cartpole param: %s", name)
	}
	return nil
}
