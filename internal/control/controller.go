package control

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/rng"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

type Controller interface {
	Name() string
	Task() task.Task
	NumSamples() int

	InitParams() Params
	InitParamsFrom(mean *mat.Dense) (Params, error)
	SampleControls(p Params) ([]*mat.Dense, Params)
	EvalRollouts(ctx context.Context, x dynamo.State, controls []*mat.Dense) (*rollout.Batch, error)
	UpdateParams(p Params, batch *rollout.Batch) (Params, error)
	Optimize(ctx context.Context, x dynamo.State, p Params) (Params, *rollout.Batch, error)
}

// Config holds the keyword settings shared by the sampling algorithms.
// Temperature is read by MPPI only.
type Config struct {
	NumSamples  int
	NoiseLevel  float64
	Temperature float64
	Seed        uint64
}

func (c Config) validate() error {
	if c.NumSamples <= 0 {
		return dynamo.InvalidConfigf("num_samples must be positive, got %d", c.NumSamples)
	}
	if !(c.NoiseLevel > 0) || math.IsInf(c.NoiseLevel, 0) {
		return dynamo.InvalidConfigf("noise_level must be positive, got %v", c.NoiseLevel)
	}
	return nil
}

// sampler is the Gaussian perturbation and rollout plumbing both algorithms
// share.
type sampler struct {
	task       task.Task
	eval       *rollout.Evaluator
	numSamples int
	noiseLevel float64
	seed       uint64
}

func newSampler(t task.Task, cfg Config) (sampler, error) {
	if t == nil {
		return sampler{}, dynamo.InvalidConfigf("controller needs a task")
	}
	if err := cfg.validate(); err != nil {
		return sampler{}, err
	}
	return sampler{
		task:       t,
		eval:       rollout.NewEvaluator(t),
		numSamples: cfg.NumSamples,
		noiseLevel: cfg.NoiseLevel,
		seed:       cfg.Seed,
	}, nil
}

func (s *sampler) Task() task.Task { return s.task }
func (s *sampler) NumSamples() int { return s.numSamples }

func (s *sampler) meanShape() (int, int) {
	return s.task.PlanningHorizon() - 1, s.task.Model().ControlDim()
}

func (s *sampler) initParams() Params {
	r, c := s.meanShape()
	return Params{
		Mean:       mat.NewDense(r, c, nil),
		Key:        rng.New(s.seed),
		NoiseLevel: s.noiseLevel,
	}
}

func (s *sampler) initParamsFrom(mean *mat.Dense) (Params, error) {
	r, c := s.meanShape()
	if err := checkMean(mean, r, c); err != nil {
		return Params{}, err
	}
	p := s.initParams()
	p.Mean = mat.DenseCopyOf(mean)
	return p, nil
}

// SampleControls returns NumSamples+1 candidates, candidate 0 being an exact
// copy of the mean. Candidate k draws from its own stream folded out of a
// fresh subkey, so the result depends only on p.
func (s *sampler) SampleControls(p Params) ([]*mat.Dense, Params) {
	next, sub := p.Key.Split()

	r, c := p.Mean.Dims()
	controls := make([]*mat.Dense, s.numSamples+1)
	controls[0] = mat.DenseCopyOf(p.Mean)

	for k := 1; k <= s.numSamples; k++ {
		noise := distuv.Normal{Mu: 0, Sigma: p.NoiseLevel, Src: sub.Fold(uint64(k)).Source()}
		cand := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				cand.Set(i, j, p.Mean.At(i, j)+noise.Rand())
			}
		}
		controls[k] = cand
	}

	out := p
	out.Key = next
	return controls, out
}

func (s *sampler) EvalRollouts(ctx context.Context, x dynamo.State, controls []*mat.Dense) (*rollout.Batch, error) {
	return s.eval.Eval(ctx, x, controls)
}

type updater interface {
	UpdateParams(p Params, batch *rollout.Batch) (Params, error)
}

// optimize fuses sample, evaluate and update. On a fully divergent batch the
// returned params keep the old mean with the advanced key.
func (s *sampler) optimize(ctx context.Context, u updater, x dynamo.State, p Params) (Params, *rollout.Batch, error) {
	r, c := s.meanShape()
	if err := checkMean(p.Mean, r, c); err != nil {
		return p, nil, err
	}

	controls, sampled := s.SampleControls(p)
	batch, err := s.EvalRollouts(ctx, x, controls)
	if err != nil {
		return p, nil, err
	}

	updated, err := u.UpdateParams(sampled, batch)
	if err != nil {
		return sampled, batch, err
	}
	return updated, batch, nil
}
