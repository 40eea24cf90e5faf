package control_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/integrators"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

type unstable struct{}

func (unstable) StateDim() int   { return 2 }
func (unstable) ControlDim() int { return 1 }
func (unstable) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], math.Inf(1)}
}

type unstableTask struct {
	task.Base
}

func (unstableTask) Name() string                                         { return "unstable" }
func (unstableTask) RunningCost(x dynamo.State, u dynamo.Control) float64 { return 0 }
func (unstableTask) TerminalCost(x dynamo.State) float64                  { return 0 }

func batchOf(costs []float64, plans ...*mat.Dense) *rollout.Batch {
	return &rollout.Batch{
		Costs:    mat.NewDense(len(costs), 1, costs),
		Controls: plans,
	}
}

var _ = Describe("Sampling", func() {
	var (
		pend *task.Pendulum
		ps   *control.PredictiveSampling
	)

	BeforeEach(func() {
		var err error
		pend, err = task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		ps, err = control.NewPredictiveSampling(pend, control.Config{NumSamples: 32, NoiseLevel: 0.1})
		Expect(err).NotTo(HaveOccurred())
	})

	It("initializes a zero mean of shape (H-1) x control_dim", func() {
		p := ps.InitParams()
		r, c := p.Mean.Dims()
		Expect(r).To(Equal(pend.PlanningHorizon() - 1))
		Expect(c).To(Equal(1))
		Expect(floats.Norm(p.Mean.RawMatrix().Data, 2)).To(BeZero())
		Expect(p.NoiseLevel).To(Equal(0.1))
	})

	It("returns num_samples+1 candidates with the mean first", func() {
		mean := mat.NewDense(pend.PlanningHorizon()-1, 1, nil)
		for i := 0; i < pend.PlanningHorizon()-1; i++ {
			mean.Set(i, 0, float64(i)*0.1)
		}
		p, err := ps.InitParamsFrom(mean)
		Expect(err).NotTo(HaveOccurred())

		controls, next := ps.SampleControls(p)
		Expect(controls).To(HaveLen(33))
		Expect(mat.Equal(controls[0], p.Mean)).To(BeTrue())
		for _, c := range controls[1:] {
			Expect(mat.Equal(c, p.Mean)).To(BeFalse())
		}
		Expect(next.Key).NotTo(Equal(p.Key))
		Expect(mat.Equal(next.Mean, p.Mean)).To(BeTrue())
	})

	It("is reproducible for the same params and fresh for the next key", func() {
		p := ps.InitParams()
		a, pa := ps.SampleControls(p)
		b, pb := ps.SampleControls(p)
		Expect(pa.Key).To(Equal(pb.Key))
		for k := range a {
			Expect(mat.Equal(a[k], b[k])).To(BeTrue())
		}

		c, pc := ps.SampleControls(pa)
		Expect(pc.Key).NotTo(Equal(pa.Key))
		Expect(mat.Equal(a[1], c[1])).To(BeFalse())
	})

	It("draws noise with the configured scale", func() {
		wide, err := control.NewPredictiveSampling(pend, control.Config{NumSamples: 2000, NoiseLevel: 0.5, Seed: 9})
		Expect(err).NotTo(HaveOccurred())
		controls, _ := wide.SampleControls(wide.InitParams())

		var draws []float64
		for _, c := range controls[1:] {
			draws = append(draws, c.RawMatrix().Data...)
		}
		Expect(stat.Mean(draws, nil)).To(BeNumerically("~", 0, 0.02))
		Expect(stat.StdDev(draws, nil)).To(BeNumerically("~", 0.5, 0.025))
	})

	It("rejects a warm start of the wrong shape", func() {
		_, err := ps.InitParamsFrom(mat.NewDense(3, 1, nil))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	DescribeTable("rejects invalid configuration eagerly",
		func(cfg control.Config, mppi bool) {
			var err error
			if mppi {
				_, err = control.NewMPPI(pend, cfg)
			} else {
				_, err = control.NewPredictiveSampling(pend, cfg)
			}
			Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
		},
		Entry("zero samples", control.Config{NumSamples: 0, NoiseLevel: 0.1}, false),
		Entry("negative samples", control.Config{NumSamples: -4, NoiseLevel: 0.1}, false),
		Entry("zero noise", control.Config{NumSamples: 8, NoiseLevel: 0}, false),
		Entry("NaN noise", control.Config{NumSamples: 8, NoiseLevel: math.NaN()}, false),
		Entry("zero temperature", control.Config{NumSamples: 8, NoiseLevel: 0.1, Temperature: 0}, true),
		Entry("negative temperature", control.Config{NumSamples: 8, NoiseLevel: 0.1, Temperature: -1}, true),
	)

	Describe("Shift", func() {
		It("drops the executed row and repeats the last", func() {
			mean := mat.NewDense(4, 2, []float64{
				1, 10,
				2, 20,
				3, 30,
				4, 40,
			})
			shifted := control.Shift(control.Params{Mean: mean}, 1)
			Expect(shifted.Mean.RawMatrix().Data).To(Equal([]float64{2, 20, 3, 30, 4, 40, 4, 40}))
			Expect(mean.At(0, 0)).To(Equal(1.0))

			twice := control.Shift(control.Params{Mean: mean}, 3)
			Expect(twice.Mean.RawMatrix().Data).To(Equal([]float64{4, 40, 4, 40, 4, 40, 4, 40}))
		})
	})

	Context("when every candidate diverges", func() {
		It("keeps the mean and reports divergence", func() {
			model, err := dynamo.NewModel("unstable", unstable{}, integrators.NewEuler(), 0.01)
			Expect(err).NotTo(HaveOccurred())
			base, err := task.NewBase(model, 4, 1, nil)
			Expect(err).NotTo(HaveOccurred())

			ctrl, err := control.NewPredictiveSampling(unstableTask{Base: base}, control.Config{NumSamples: 4, NoiseLevel: 0.1})
			Expect(err).NotTo(HaveOccurred())

			p := ctrl.InitParams()
			next, batch, err := ctrl.Optimize(context.Background(), dynamo.State{0, 0}, p)
			Expect(err).To(MatchError(dynamo.ErrDivergentSimulation))
			Expect(batch.DivergedCount()).To(Equal(5))
			Expect(mat.Equal(next.Mean, p.Mean)).To(BeTrue())
			Expect(next.Key).NotTo(Equal(p.Key))
		})
	})
})
