package task

import (
	"fmt"
	"sort"

	"github.com/san-kum/samplempc/internal/dynamo"
)

var registry = map[string]func() (Task, error){
	"pendulum":        func() (Task, error) { return NewPendulum() },
	"cartpole":        func() (Task, error) { return NewCartPole() },
	"double_cartpole": func() (Task, error) { return NewDoubleCartPole(10, 10) },
	"drone":           func() (Task, error) { return NewDrone() },
}

// New builds the task registered under name with its default settings.
func New(name string) (Task, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", dynamo.ErrUnknownModel, name)
	}
	return fn()
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
