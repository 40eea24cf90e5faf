package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/rng"
)

// Params is the planner state carried between control steps. Mean is
// (H-1) x control_dim and must not be modified once a Params is built.
// Temperature is read by MPPI only and has no default.
type Params struct {
	Mean        *mat.Dense
	Key         rng.Key
	NoiseLevel  float64
	Temperature float64
}

func (p Params) Clone() Params {
	c := p
	if p.Mean != nil {
		c.Mean = mat.DenseCopyOf(p.Mean)
	}
	return c
}

// First is the control to apply now.
func (p Params) First() dynamo.Control {
	return dynamo.Control(mat.Row(nil, 0, p.Mean))
}

// Shift advances the plan by n control steps for a warm start: the first n
// rows are dropped and the last row is repeated to keep the shape.
func Shift(p Params, n int) Params {
	out := p
	if p.Mean == nil || n <= 0 {
		return out
	}
	r, c := p.Mean.Dims()
	mean := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := i + n
		if src > r-1 {
			src = r - 1
		}
		mean.SetRow(i, p.Mean.RawRowView(src))
	}
	out.Mean = mean
	return out
}

func checkMean(mean *mat.Dense, rows, cols int) error {
	if mean == nil {
		return fmt.Errorf("%w: nil mean", dynamo.ErrDimensionMismatch)
	}
	r, c := mean.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("%w: mean is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, c, rows, cols)
	}
	return nil
}
