package integrators

import "github.com/san-kum/samplempc/internal/dynamo"

// Verlet is velocity Verlet over [q..., v...] states.
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2

	result := make(dynamo.State, n)
	dx := dyn.Derive(x, u, t)
	dt2 := dt * dt

	for i := 0; i < half; i++ {
		result[i] = x[i] + x[half+i]*dt + 0.5*dx[half+i]*dt2
	}

	// Accelerations at the new positions with the old velocities.
	scratch := make(dynamo.State, n)
	copy(scratch[:half], result[:half])
	copy(scratch[half:], x[half:])
	dxNew := dyn.Derive(scratch, u, t+dt)

	halfDt := 0.5 * dt
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + (dx[half+i]+dxNew[half+i])*halfDt
	}

	return result
}

type Leapfrog struct{}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2

	result := make(dynamo.State, n)
	scratch := make(dynamo.State, n)
	dx := dyn.Derive(x, u, t)
	halfDt := dt * 0.5

	for i := 0; i < half; i++ {
		scratch[half+i] = x[half+i] + dx[half+i]*halfDt
	}

	for i := 0; i < half; i++ {
		result[i] = x[i] + scratch[half+i]*dt
		scratch[i] = result[i]
	}

	dxNew := dyn.Derive(scratch, u, t+dt)

	for i := 0; i < half; i++ {
		result[half+i] = scratch[half+i] + dxNew[half+i]*halfDt
	}

	return result
}
