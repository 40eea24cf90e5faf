package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/samplempc/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler":         func() dynamo.Integrator { return NewEuler() },
	"semi_implicit": func() dynamo.Integrator { return NewSemiImplicitEuler() },
	"rk4":           func() dynamo.Integrator { return NewRK4() },
	"rk45":          func() dynamo.Integrator { return NewRK45() },
	"verlet":        func() dynamo.Integrator { return NewVerlet() },
	"leapfrog":      func() dynamo.Integrator { return NewLeapfrog() },
}

// New returns the integrator registered under name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: integrator %q", dynamo.ErrUnknownModel, name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
