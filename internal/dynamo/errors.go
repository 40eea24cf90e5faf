package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation and planning operations.
var (
	// ErrDivergentSimulation indicates the integrator produced a non-finite state.
	ErrDivergentSimulation = errors.New("dynamo: simulation diverged (NaN or Inf in state)")

	// ErrInvalidConfiguration indicates malformed model, task or algorithm parameters.
	ErrInvalidConfiguration = errors.New("dynamo: invalid configuration")

	// ErrPlanningOverrun indicates a plan did not finish within one control period.
	ErrPlanningOverrun = errors.New("dynamo: planning overran the control period")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnknownSite indicates a site name the model does not define.
	ErrUnknownSite = errors.New("dynamo: unknown site")

	// ErrUnknownModel indicates a system or integrator name with no registration.
	ErrUnknownModel = errors.New("dynamo: unknown model")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// InvalidConfigf formats a configuration error that matches ErrInvalidConfiguration.
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
