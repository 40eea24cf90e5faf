package metrics

import (
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/task"
)

// TaskCost averages the task's running cost along the closed-loop
// trajectory.
type TaskCost struct {
	task    task.Task
	sum     float64
	last    float64
	samples int
}

func NewTaskCost(t task.Task) *TaskCost {
	return &TaskCost{task: t}
}

func (c *TaskCost) Name() string { return "task_cost" }

func (c *TaskCost) Observe(x dynamo.State, u dynamo.Control, t float64) {
	c.last = c.task.RunningCost(x, u)
	c.sum += c.last
	c.samples++
}

func (c *TaskCost) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

// Last is the running cost of the most recent sample.
func (c *TaskCost) Last() float64 { return c.last }

func (c *TaskCost) Reset() {
	c.sum = 0
	c.last = 0
	c.samples = 0
}
