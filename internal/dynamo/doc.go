// Package dynamo provides the core primitives shared by every layer of the
// sampling MPC stack.
//
// The package defines the physical-model boundary used by tasks, rollouts and
// the real-time loop:
//
//   - [State]: generalized positions followed by velocities ([q..., v...])
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Model]: immutable physical model (system + integrator + timestep + sites)
//
// # Example
//
//	sys := physics.NewPendulum()
//	model, _ := dynamo.NewModel("pendulum", sys, integrators.NewRK4(), 0.01)
//	x := model.DefaultState()
//	x, err := model.Step(x, dynamo.Control{0.5})
//
// # Thread Safety
//
// A Model is shared read-only by every rollout goroutine. Integrators and
// systems handed to [NewModel] must therefore be safe for concurrent use and
// must not be reconfigured once the model is built.
package dynamo
