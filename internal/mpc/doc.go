// Package mpc drives a planner in a receding-horizon loop against a
// simulated plant.
//
// [Loop.Run] is the real-time mode: on every control-period boundary of a
// wall-clock ticker it applies the newest finished plan, snapshots the state
// for the next plan, and steps the plant at its native timestep while the
// planner works in its own goroutine. [Loop.RunSteps] is the deterministic
// mode that plans and steps in lockstep.
//
// # Overruns
//
// At most one plan is in flight. A plan that is still running at a boundary
// is never cancelled: the loop holds the last applied control, counts the
// overrun, and applies the late plan at the first boundary after it lands,
// advanced by the number of periods elapsed since its snapshot.
package mpc
