package experiment

import (
	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/metrics"
	"github.com/san-kum/samplempc/internal/task"
)

// Registry resolves tasks and planning algorithms by name. Tasks are built
// fresh on every lookup so runs never share model parameters.
type Registry struct {
	tasks map[string]func() (task.Task, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		tasks: make(map[string]func() (task.Task, error)),
	}
	for _, name := range task.Names() {
		r.tasks[name] = func() (task.Task, error) { return task.New(name) }
	}
	return r
}

// RegisterTask adds or replaces a task constructor.
func (r *Registry) RegisterTask(name string, fn func() (task.Task, error)) {
	r.tasks[name] = fn
}

func (r *Registry) GetTask(name string) (task.Task, error) {
	fn, ok := r.tasks[name]
	if !ok {
		return nil, dynamo.InvalidConfigf("unknown task: %s", name)
	}
	return fn()
}

func (r *Registry) GetController(name string, t task.Task, params map[string]float64) (control.Controller, error) {
	return control.New(name, t, params)
}

func (r *Registry) ListTasks() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	return names
}

func (r *Registry) ListAlgorithms() []string {
	return control.Algorithms()
}

func (r *Registry) DefaultMetrics(t task.Task) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewTaskCost(t),
		metrics.NewSettled(t, 0.1),
		metrics.NewControlEffort(),
		metrics.NewPlanning(),
	}
}
