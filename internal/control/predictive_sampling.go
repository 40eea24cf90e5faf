package control

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

// PredictiveSampling replaces the mean with the lowest-cost candidate.
type PredictiveSampling struct {
	sampler
}

func NewPredictiveSampling(t task.Task, cfg Config) (*PredictiveSampling, error) {
	s, err := newSampler(t, cfg)
	if err != nil {
		return nil, err
	}
	return &PredictiveSampling{sampler: s}, nil
}

func (ps *PredictiveSampling) Name() string { return "ps" }

func (ps *PredictiveSampling) InitParams() Params {
	return ps.initParams()
}

func (ps *PredictiveSampling) InitParamsFrom(mean *mat.Dense) (Params, error) {
	return ps.initParamsFrom(mean)
}

// UpdateParams selects the argmin candidate verbatim. Ties go to the lowest
// index, so the previous mean wins against equal-cost samples.
func (ps *PredictiveSampling) UpdateParams(p Params, batch *rollout.Batch) (Params, error) {
	idx, _, ok := batch.Best()
	if !ok {
		return p, fmt.Errorf("%w: all %d candidates diverged", dynamo.ErrDivergentSimulation, batch.NumCandidates())
	}

	out := p
	out.Mean = mat.DenseCopyOf(batch.Controls[idx])
	return out, nil
}

func (ps *PredictiveSampling) Optimize(ctx context.Context, x dynamo.State, p Params) (Params, *rollout.Batch, error) {
	return ps.optimize(ctx, ps, x, p)
}
