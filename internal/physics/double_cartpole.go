package physics

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DoubleCartPole is a two-link pendulum on a cart, modelled as point masses
// on massless links. The state is [x, theta1, theta2, xdot, omega1, omega2];
// both angles are absolute and measured from straight up. The rail sits at
// RailHeight so the upright tip is at RailHeight + Length1 + Length2.
type DoubleCartPole struct {
	CartMass   float64
	Mass1      float64
	Mass2      float64
	Length1    float64
	Length2    float64
	Gravity    float64
	CartDamp   float64
	JointDamp  float64
	RailHeight float64
	ForceLimit float64
}

func NewDoubleCartPole() *DoubleCartPole {
	return &DoubleCartPole{
		CartMass:   1.0,
		Mass1:      0.1,
		Mass2:      0.1,
		Length1:    1.0,
		Length2:    1.0,
		Gravity:    DefaultGravity,
		CartDamp:   0.1,
		JointDamp:  0.01,
		RailHeight: 2.0,
		ForceLimit: 20.0,
	}
}

func (d *DoubleCartPole) StateDim() int   { return 6 }
func (d *DoubleCartPole) ControlDim() int { return 1 }

func (d *DoubleCartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	th1, th2 := x[1], x[2]
	xd, w1, w2 := x[3], x[4], x[5]

	force := 0.0
	if len(u) > 0 {
		force = clamp(u[0], d.ForceLimit)
	}

	m12 := d.Mass1 + d.Mass2
	l1, l2, g := d.Length1, d.Length2, d.Gravity
	s1, c1 := math.Sin(th1), math.Cos(th1)
	s2, c2 := math.Sin(th2), math.Cos(th2)
	s12, c12 := math.Sin(th1-th2), math.Cos(th1-th2)

	// Symmetric positive definite mass matrix, upper triangle.
	mass := mat.NewSymDense(3, []float64{
		d.CartMass + m12, m12 * l1 * c1, d.Mass2 * l2 * c2,
		0, m12 * l1 * l1, d.Mass2 * l1 * l2 * c12,
		0, 0, d.Mass2 * l2 * l2,
	})

	rhs := mat.NewVecDense(3, []float64{
		force + m12*l1*s1*w1*w1 + d.Mass2*l2*s2*w2*w2 - d.CartDamp*xd,
		-d.Mass2*l1*l2*s12*w2*w2 + m12*g*l1*s1 - d.JointDamp*w1,
		d.Mass2*l1*l2*s12*w1*w1 + d.Mass2*g*l2*s2 - d.JointDamp*w2,
	})

	var chol mat.Cholesky
	if ok := chol.Factorize(mass); !ok {
		nan := math.NaN()
		return dynamo.State{xd, w1, w2, nan, nan, nan}
	}

	var acc mat.VecDense
	if err := chol.SolveVecTo(&acc, rhs); err != nil {
		nan := math.NaN()
		return dynamo.State{xd, w1, w2, nan, nan, nan}
	}

	return dynamo.State{xd, w1, w2, acc.AtVec(0), acc.AtVec(1), acc.AtVec(2)}
}

// DefaultState hangs both links below the cart.
func (d *DoubleCartPole) DefaultState() dynamo.State {
	return dynamo.State{0, math.Pi, math.Pi, 0, 0, 0}
}

func (d *DoubleCartPole) Energy(x dynamo.State) float64 {
	th1, th2 := x[1], x[2]
	xd, w1, w2 := x[3], x[4], x[5]

	v1x := xd + d.Length1*math.Cos(th1)*w1
	v1z := -d.Length1 * math.Sin(th1) * w1
	v2x := v1x + d.Length2*math.Cos(th2)*w2
	v2z := v1z - d.Length2*math.Sin(th2)*w2

	ke := 0.5*d.CartMass*xd*xd + 0.5*d.Mass1*(v1x*v1x+v1z*v1z) + 0.5*d.Mass2*(v2x*v2x+v2z*v2z)
	pe := d.Mass1*d.Gravity*d.Length1*math.Cos(th1) +
		d.Mass2*d.Gravity*(d.Length1*math.Cos(th1)+d.Length2*math.Cos(th2))
	return ke + pe
}

func (d *DoubleCartPole) Sites() []string {
	return []string{"cart", "elbow", "tip"}
}

func (d *DoubleCartPole) SitePos(name string, x dynamo.State) (dynamo.Vec3, bool) {
	cart := dynamo.Vec3{x[0], 0, d.RailHeight}
	elbow := dynamo.Vec3{cart[0] + d.Length1*math.Sin(x[1]), 0, cart[2] + d.Length1*math.Cos(x[1])}
	switch name {
	case "cart":
		return cart, true
	case "elbow":
		return elbow, true
	case "tip":
		return dynamo.Vec3{elbow[0] + d.Length2*math.Sin(x[2]), 0, elbow[2] + d.Length2*math.Cos(x[2])}, true
	}
	return dynamo.Vec3{}, false
}

func (d *DoubleCartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   d.CartMass,
		"mass1":       d.Mass1,
		"mass2":       d.Mass2,
		"length1":     d.Length1,
		"length2":     d.Length2,
		"gravity":     d.Gravity,
		"cart_damp":   d.CartDamp,
		"joint_damp":  d.JointDamp,
		"rail_height": d.RailHeight,
		"force_limit": d.ForceLimit,
	}
}

func (d *DoubleCartPole) SetParam(name string, value float64) error {
	switch name {
	case "cart_mass":
		d.CartMass = value
	case "mass1":
		d.Mass1 = value
	case "mass2":
		d.Mass2 = value
	case "length1":
		d.Length1 = value
	case "length2":
		d.Length2 = value
	case "gravity":
		d.Gravity = value
	case "cart_damp":
		d.CartDamp = value
	case "joint_damp":
		d.JointDamp = value
	case "rail_height":
		d.RailHeight = value
	case "force_limit":
		d.ForceLimit = value
	default:
		return dynamo.InvalidConfigf("unknown double cartpole param: %s", name)
	}
	return nil
}
