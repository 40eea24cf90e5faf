package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Positions returns the generalized-position half of the state.
func (s State) Positions() []float64 { return s[:len(s)/2] }

// Velocities returns the generalized-velocity half of the state.
func (s State) Velocities() []float64 { return s[len(s)/2:] }

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// Vec3 is a world-frame position (x, y, z), z pointing up.
type Vec3 [3]float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// DefaultPoser is implemented by systems whose rest pose is not the zero vector.
type DefaultPoser interface {
	DefaultState() State
}

// SiteLocator exposes named reference points used for traces and rendering.
// Sites are listed in skeleton order: consecutive sites are drawn connected.
type SiteLocator interface {
	Sites() []string
	SitePos(name string, x State) (Vec3, bool)
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, error)
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

// Result is the closed-loop trace of one real-time run.
type Result struct {
	States    []State
	Controls  []Control
	Times     []float64
	PlanCosts []float64
	Metrics   map[string]float64
	Overruns  int
}
