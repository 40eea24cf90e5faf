// Package rollout forward-simulates batches of candidate control sequences.
package rollout

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Batch is the output of one evaluation. Candidate 0 is the nominal plan.
//
// Costs is K x H: column t < H-1 holds the running cost of the state before
// control t, and the last column holds running(x_H, 0) + terminal(x_H).
// Observations[k] has H rows taken at x_0..x_{H-1}. Traces[k][t] lists the
// task's trace sites at the same states.
type Batch struct {
	Costs        *mat.Dense
	Observations [][][]float64
	Controls     []*mat.Dense
	Diverged     []bool
	Traces       [][][]dynamo.Vec3
}

func (b *Batch) NumCandidates() int {
	r, _ := b.Costs.Dims()
	return r
}

func (b *Batch) Horizon() int {
	_, c := b.Costs.Dims()
	return c
}

// TotalCosts sums each candidate's costs over the horizon. NaN totals are
// reported as +Inf so they lose every comparison.
func (b *Batch) TotalCosts() []float64 {
	k := b.NumCandidates()
	totals := make([]float64, k)
	for i := 0; i < k; i++ {
		s := floats.Sum(b.Costs.RawRowView(i))
		if math.IsNaN(s) {
			s = math.Inf(1)
		}
		totals[i] = s
	}
	return totals
}

// Best returns the lowest-cost candidate, first index on ties. ok is false
// when no candidate has a finite cost.
func (b *Batch) Best() (idx int, cost float64, ok bool) {
	totals := b.TotalCosts()
	idx = floats.MinIdx(totals)
	cost = totals[idx]
	return idx, cost, !math.IsInf(cost, 1)
}

// DivergedCount is the number of candidates whose simulation blew up.
func (b *Batch) DivergedCount() int {
	n := 0
	for _, d := range b.Diverged {
		if d {
			n++
		}
	}
	return n
}
