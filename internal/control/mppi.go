package control

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

// MPPI replaces the mean with a softmax-weighted average of all candidates.
type MPPI struct {
	sampler
	temperature float64
}

func NewMPPI(t task.Task, cfg Config) (*MPPI, error) {
	if !(cfg.Temperature > 0) || math.IsInf(cfg.Temperature, 0) {
		return nil, dynamo.InvalidConfigf("temperature must be positive, got %v", cfg.Temperature)
	}
	s, err := newSampler(t, cfg)
	if err != nil {
		return nil, err
	}
	return &MPPI{sampler: s, temperature: cfg.Temperature}, nil
}

func (m *MPPI) Name() string { return "mppi" }

func (m *MPPI) Temperature() float64 { return m.temperature }

func (m *MPPI) InitParams() Params {
	p := m.initParams()
	p.Temperature = m.temperature
	return p
}

func (m *MPPI) InitParamsFrom(mean *mat.Dense) (Params, error) {
	p, err := m.initParamsFrom(mean)
	if err != nil {
		return Params{}, err
	}
	p.Temperature = m.temperature
	return p, nil
}

// Weights maps total costs to normalized weights exp(-(c - min) / T).
// Non-finite costs get zero weight. It fails if temperature is not positive
// or if no cost is finite.
func Weights(totals []float64, temperature float64) ([]float64, error) {
	if !(temperature > 0) {
		return nil, dynamo.InvalidConfigf("temperature must be positive, got %v", temperature)
	}

	finite := make([]float64, 0, len(totals))
	for _, c := range totals {
		if !math.IsInf(c, 0) && !math.IsNaN(c) {
			finite = append(finite, c)
		}
	}
	if len(finite) == 0 {
		return nil, fmt.Errorf("%w: no finite candidate cost", dynamo.ErrDivergentSimulation)
	}

	lo := floats.Min(finite)
	logits := make([]float64, len(finite))
	for i, c := range finite {
		logits[i] = -(c - lo) / temperature
	}
	norm := floats.LogSumExp(logits)

	weights := make([]float64, len(totals))
	j := 0
	for i, c := range totals {
		if math.IsInf(c, 0) || math.IsNaN(c) {
			continue
		}
		weights[i] = math.Exp(logits[j] - norm)
		j++
	}
	return weights, nil
}

// UpdateParams averages the batch's candidates under p.Temperature. Params
// built outside InitParams must set the temperature themselves.
func (m *MPPI) UpdateParams(p Params, batch *rollout.Batch) (Params, error) {
	weights, err := Weights(batch.TotalCosts(), p.Temperature)
	if err != nil {
		return p, err
	}

	r, c := batch.Controls[0].Dims()
	mean := mat.NewDense(r, c, nil)
	var scaled mat.Dense
	for k, w := range weights {
		if w == 0 {
			continue
		}
		scaled.Scale(w, batch.Controls[k])
		mean.Add(mean, &scaled)
	}

	out := p
	out.Mean = mean
	return out, nil
}

func (m *MPPI) Optimize(ctx context.Context, x dynamo.State, p Params) (Params, *rollout.Batch, error) {
	return m.optimize(ctx, m, x, p)
}
