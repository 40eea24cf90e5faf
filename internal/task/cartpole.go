package task

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/scene"
)

// CartPole swings a pole up by pushing its cart.
type CartPole struct {
	Base
}

func NewCartPole() (*CartPole, error) {
	model, err := scene.Load("cartpole")
	if err != nil {
		return nil, err
	}
	base, err := NewBase(model, 10, 5, []string{"tip"})
	if err != nil {
		return nil, err
	}
	return &CartPole{Base: base}, nil
}

func (c *CartPole) Name() string { return "cartpole" }

// upright measures the distance to vertical; the cart-pole angle is zero
// when upright.
func (c *CartPole) upright(x dynamo.State) float64 {
	return distanceToUpright(x[1] + math.Pi)
}

func (c *CartPole) RunningCost(x dynamo.State, u dynamo.Control) float64 {
	return c.upright(x) + 0.01*sumSq(x.Velocities()) + 0.001*sumSq(u)
}

func (c *CartPole) TerminalCost(x dynamo.State) float64 {
	return c.upright(x) + 0.01*sumSq(x.Velocities())
}
