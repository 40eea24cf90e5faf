// Package physics provides the controlled dynamical systems the planner
// rolls out.
//
// Each model implements [dynamo.System] with a [q..., v...] state layout and
// [dynamo.SiteLocator] for traces and rendering:
//
//   - [Pendulum]: geared, command-limited swing-up pendulum
//   - [CartPole]: pole on a force-driven cart
//   - [DoubleCartPole]: two-link pendulum on a cart
//   - [Drone]: planar quadrotor with two thrust inputs
//
// All models implement [dynamo.Configurable] for scene parameter overrides
// and [dynamo.Hamiltonian] for energy monitoring:
//
//	dyn := physics.NewPendulum()
//	if h, ok := dyn.(dynamo.Hamiltonian); ok {
//	    energy := h.Energy(state)
//	}
package physics
