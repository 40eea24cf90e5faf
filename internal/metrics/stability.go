package metrics

import (
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/task"
)

// Settled is the fraction of samples whose state cost, ignoring control,
// is below threshold. For swing-up tasks it is the time share spent near
// the target.
type Settled struct {
	name      string
	task      task.Task
	threshold float64
	hits      int
	samples   int
	zero      dynamo.Control
}

func NewSettled(t task.Task, threshold float64) *Settled {
	return &Settled{
		name:      "settled",
		task:      t,
		threshold: threshold,
		zero:      make(dynamo.Control, t.Model().ControlDim()),
	}
}

func (s *Settled) Name() string {
	return s.name
}

func (s *Settled) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if s.task.RunningCost(x, s.zero) < s.threshold {
		s.hits++
	}
}

func (s *Settled) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.samples)
}

func (s *Settled) Reset() {
	s.hits = 0
	s.samples = 0
}
