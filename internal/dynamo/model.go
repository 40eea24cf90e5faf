package dynamo

import (
	"fmt"
	"math"
)

// Model is the immutable description of a physical system: its dynamics,
// the native integrator and timestep, and the named sites used for traces.
type Model struct {
	name       string
	system     System
	integrator Integrator
	timestep   float64
	sites      []string
}

func NewModel(name string, sys System, integ Integrator, timestep float64) (*Model, error) {
	if sys == nil || integ == nil {
		return nil, InvalidConfigf("model %q needs a system and an integrator", name)
	}
	if timestep <= 0 || math.IsNaN(timestep) || math.IsInf(timestep, 0) {
		return nil, InvalidConfigf("model %q timestep must be positive, got %v", name, timestep)
	}
	if sys.StateDim()%2 != 0 {
		return nil, InvalidConfigf("model %q state dimension %d is not [q, v] shaped", name, sys.StateDim())
	}

	m := &Model{
		name:       name,
		system:     sys,
		integrator: integ,
		timestep:   timestep,
	}
	if sl, ok := sys.(SiteLocator); ok {
		m.sites = append([]string(nil), sl.Sites()...)
	}
	return m, nil
}

func (m *Model) Name() string           { return m.name }
func (m *Model) System() System         { return m.system }
func (m *Model) Integrator() Integrator { return m.integrator }
func (m *Model) Timestep() float64      { return m.timestep }
func (m *Model) StateDim() int          { return m.system.StateDim() }
func (m *Model) ControlDim() int        { return m.system.ControlDim() }

// Sites returns the site names in skeleton order.
func (m *Model) Sites() []string {
	return append([]string(nil), m.sites...)
}

func (m *Model) HasSite(name string) bool {
	for _, s := range m.sites {
		if s == name {
			return true
		}
	}
	return false
}

// DefaultState returns the rest pose with zero velocity.
func (m *Model) DefaultState() State {
	if dp, ok := m.system.(DefaultPoser); ok {
		x := dp.DefaultState().Clone()
		for i := len(x) / 2; i < len(x); i++ {
			x[i] = 0
		}
		return x
	}
	return make(State, m.system.StateDim())
}

// Step advances x by one native timestep holding u fixed. A non-finite
// result is reported as ErrDivergentSimulation and never clamped.
func (m *Model) Step(x State, u Control) (State, error) {
	if len(x) != m.system.StateDim() {
		return nil, fmt.Errorf("%w: state has %d entries, %s expects %d", ErrDimensionMismatch, len(x), m.name, m.system.StateDim())
	}
	if len(u) != m.system.ControlDim() {
		return nil, fmt.Errorf("%w: control has %d entries, %s expects %d", ErrDimensionMismatch, len(u), m.name, m.system.ControlDim())
	}

	next := m.integrator.Step(m.system, x, u, 0, m.timestep)
	if !next.IsValid() {
		return next, ErrDivergentSimulation
	}
	return next, nil
}

func (m *Model) SitePos(name string, x State) (Vec3, error) {
	sl, ok := m.system.(SiteLocator)
	if !ok {
		return Vec3{}, fmt.Errorf("%w: %s has no sites", ErrUnknownSite, m.name)
	}
	p, ok := sl.SitePos(name, x)
	if !ok {
		return Vec3{}, fmt.Errorf("%w: %q on %s", ErrUnknownSite, name, m.name)
	}
	return p, nil
}
