package metrics

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// ControlEffort is the mean squared control magnitude applied to the plant.
type ControlEffort struct {
	name    string
	sum     float64
	peak    float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	sq := 0.0
	for _, val := range u {
		sq += val * val
	}
	c.sum += sq
	c.peak = math.Max(c.peak, math.Sqrt(sq))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

// Peak is the largest control norm seen.
func (c *ControlEffort) Peak() float64 {
	return c.peak
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.peak = 0
	c.samples = 0
}
