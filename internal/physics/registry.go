package physics

import (
	"fmt"
	"sort"

	"github.com/san-kum/samplempc/internal/dynamo"
)

var registry = map[string]func() dynamo.System{
	"pendulum":        func() dynamo.System { return NewPendulum() },
	"cartpole":        func() dynamo.System { return NewCartPole() },
	"double_cartpole": func() dynamo.System { return NewDoubleCartPole() },
	"drone":           func() dynamo.System { return NewDrone() },
}

// New returns a fresh system with default parameters.
func New(name string) (dynamo.System, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: system %q", dynamo.ErrUnknownModel, name)
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
