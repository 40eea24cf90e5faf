package control_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

func plan(v ...float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

// expectSwungUp checks that the best candidate of the final batch ends near
// upright. Hanging still for the whole horizon costs 84.
func expectSwungUp(batch *rollout.Batch) {
	GinkgoHelper()
	idx, best, ok := batch.Best()
	Expect(ok).To(BeTrue())
	Expect(best).To(BeNumerically("<", 25))

	obs := batch.Observations[idx]
	theta := obs[len(obs)-1][0]
	Expect(math.Cos(theta)).To(BeNumerically("<", -0.9))
}

var _ = Describe("PredictiveSampling", func() {
	var (
		ctx  context.Context
		pend *task.Pendulum
		ps   *control.PredictiveSampling
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		pend, err = task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		ps, err = control.NewPredictiveSampling(pend, control.Config{NumSamples: 32, NoiseLevel: 0.1})
		Expect(err).NotTo(HaveOccurred())
	})

	It("selects the argmin candidate verbatim", func() {
		p := ps.InitParams()
		controls, sampled := ps.SampleControls(p)
		batch, err := ps.EvalRollouts(ctx, pend.ResetState(), controls)
		Expect(err).NotTo(HaveOccurred())

		updated, err := ps.UpdateParams(sampled, batch)
		Expect(err).NotTo(HaveOccurred())

		totals := batch.TotalCosts()
		best := floats.MinIdx(totals)
		Expect(mat.Equal(updated.Mean, batch.Controls[best])).To(BeTrue())
		Expect(totals[best]).To(BeNumerically("<=", totals[0]))
		Expect(mat.Equal(updated.Mean, sampled.Mean)).To(BeFalse())
		Expect(updated.Key).To(Equal(sampled.Key))
	})

	It("keeps the nominal on ties", func() {
		batch := batchOf([]float64{1, 1, 1}, plan(0), plan(1), plan(2))
		updated, err := ps.UpdateParams(control.Params{Mean: plan(0)}, batch)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Mean.At(0, 0)).To(Equal(0.0))
	})

	It("ignores NaN candidates", func() {
		batch := batchOf([]float64{3, math.NaN(), 2}, plan(0), plan(1), plan(2))
		updated, err := ps.UpdateParams(control.Params{Mean: plan(0)}, batch)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Mean.At(0, 0)).To(Equal(2.0))
	})

	It("does not alias the batch", func() {
		batch := batchOf([]float64{3, 1}, plan(0), plan(1))
		updated, err := ps.UpdateParams(control.Params{Mean: plan(0)}, batch)
		Expect(err).NotTo(HaveOccurred())
		batch.Controls[1].Set(0, 0, 42)
		Expect(updated.Mean.At(0, 0)).To(Equal(1.0))
	})

	It("never worsens the plan in open loop", func() {
		x := pend.ResetState()
		p := ps.InitParams()
		prev := math.Inf(1)
		for i := 0; i < 30; i++ {
			next, batch, err := ps.Optimize(ctx, x, p)
			Expect(err).NotTo(HaveOccurred())
			p = next
			nominal := batch.TotalCosts()[0]
			Expect(nominal).To(BeNumerically("<=", prev+1e-9))
			prev = nominal
		}
	})

	It("converges on pendulum swing-up in open loop", func() {
		x := pend.ResetState()
		p := ps.InitParams()

		var batch *rollout.Batch
		for i := 0; i < 100; i++ {
			next, b, err := ps.Optimize(ctx, x, p)
			Expect(err).NotTo(HaveOccurred())
			p, batch = next, b
		}
		expectSwungUp(batch)
	})
})

var _ = Describe("MPPI", func() {
	It("produces weights that sum to one", func() {
		for _, temp := range []float64{0.01, 0.1, 1, 10, 1000} {
			w, err := control.Weights([]float64{5, 3.2, 8, 3.2, 100, 0.5}, temp)
			Expect(err).NotTo(HaveOccurred())
			Expect(floats.Sum(w)).To(BeNumerically("~", 1, 1e-12))
			for _, v := range w {
				Expect(v).To(BeNumerically(">=", 0))
			}
		}
	})

	It("approaches argmin as temperature goes to zero", func() {
		w, err := control.Weights([]float64{5, 3, 8, 2.9}, 1e-4)
		Expect(err).NotTo(HaveOccurred())
		Expect(w[3]).To(BeNumerically("~", 1, 1e-9))
	})

	It("approaches the uniform average at high temperature", func() {
		w, err := control.Weights([]float64{5, 3, 8, 2.9}, 1e9)
		Expect(err).NotTo(HaveOccurred())
		for _, v := range w {
			Expect(v).To(BeNumerically("~", 0.25, 1e-6))
		}
	})

	It("gives non-finite costs zero weight", func() {
		w, err := control.Weights([]float64{1, math.Inf(1), math.NaN(), 1}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(w[0]).To(BeNumerically("~", 0.5, 1e-12))
		Expect(w[1]).To(BeZero())
		Expect(w[2]).To(BeZero())
		Expect(w[3]).To(BeNumerically("~", 0.5, 1e-12))
	})

	It("guards the temperature and empty batches", func() {
		_, err := control.Weights([]float64{1, 2}, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
		_, err = control.Weights([]float64{1, 2}, -1)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
		_, err = control.Weights([]float64{math.Inf(1), math.NaN()}, 1)
		Expect(err).To(MatchError(dynamo.ErrDivergentSimulation))
	})

	It("averages candidates by weight", func() {
		pend, err := task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		m, err := control.NewMPPI(pend, control.Config{NumSamples: 2, NoiseLevel: 0.1, Temperature: 1})
		Expect(err).NotTo(HaveOccurred())

		batch := batchOf([]float64{1, 1, math.Inf(1)}, plan(0, 2), plan(2, 4), plan(100, 100))
		updated, err := m.UpdateParams(control.Params{Mean: plan(0, 2), Temperature: 1}, batch)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Mean.At(0, 0)).To(BeNumerically("~", 1, 1e-12))
		Expect(updated.Mean.At(1, 0)).To(BeNumerically("~", 3, 1e-12))
	})

	It("rejects params without a temperature", func() {
		pend, err := task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		m, err := control.NewMPPI(pend, control.Config{NumSamples: 2, NoiseLevel: 0.1, Temperature: 1})
		Expect(err).NotTo(HaveOccurred())

		batch := batchOf([]float64{1, 2}, plan(0), plan(1))
		_, err = m.UpdateParams(control.Params{Mean: plan(0)}, batch)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
	})

	Context("on a sampled pendulum batch", func() {
		var (
			ctx  context.Context
			pend *task.Pendulum
		)

		BeforeEach(func() {
			ctx = context.Background()
			var err error
			pend, err = task.NewPendulum()
			Expect(err).NotTo(HaveOccurred())
		})

		sampleBatch := func(temperature float64) (*control.MPPI, control.Params, *rollout.Batch) {
			m, err := control.NewMPPI(pend, control.Config{NumSamples: 32, NoiseLevel: 0.1, Temperature: temperature, Seed: 4})
			Expect(err).NotTo(HaveOccurred())
			controls, sampled := m.SampleControls(m.InitParams())
			batch, err := m.EvalRollouts(ctx, pend.ResetState(), controls)
			Expect(err).NotTo(HaveOccurred())
			return m, sampled, batch
		}

		It("collapses onto the argmin candidate at tiny temperature", func() {
			m, sampled, batch := sampleBatch(1e-9)
			updated, err := m.UpdateParams(sampled, batch)
			Expect(err).NotTo(HaveOccurred())

			best := floats.MinIdx(batch.TotalCosts())
			Expect(mat.EqualApprox(updated.Mean, batch.Controls[best], 1e-9)).To(BeTrue())
		})

		It("blends candidates into a new mean", func() {
			m, sampled, batch := sampleBatch(1)
			updated, err := m.UpdateParams(sampled, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(updated.Mean, sampled.Mean)).To(BeFalse())
			Expect(updated.Key).To(Equal(sampled.Key))

			r, _ := updated.Mean.Dims()
			for i := 0; i < r; i++ {
				lo, hi := math.Inf(1), math.Inf(-1)
				for _, c := range batch.Controls {
					lo = math.Min(lo, c.At(i, 0))
					hi = math.Max(hi, c.At(i, 0))
				}
				Expect(updated.Mean.At(i, 0)).To(BeNumerically(">=", lo-1e-12))
				Expect(updated.Mean.At(i, 0)).To(BeNumerically("<=", hi+1e-12))
			}
		})
	})

	It("converges on pendulum swing-up at low temperature", func() {
		ctx := context.Background()
		pend, err := task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		m, err := control.NewMPPI(pend, control.Config{NumSamples: 32, NoiseLevel: 0.1, Temperature: 0.01})
		Expect(err).NotTo(HaveOccurred())

		x := pend.ResetState()
		p := m.InitParams()
		Expect(p.Temperature).To(Equal(0.01))

		var batch *rollout.Batch
		for i := 0; i < 100; i++ {
			next, b, err := m.Optimize(ctx, x, p)
			Expect(err).NotTo(HaveOccurred())
			p, batch = next, b
		}
		expectSwungUp(batch)
	})
})

var _ = Describe("Registry", func() {
	var pend *task.Pendulum

	BeforeEach(func() {
		var err error
		pend, err = task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
	})

	It("builds algorithms by name from keyword settings", func() {
		c, err := control.New("ps", pend, map[string]float64{"num_samples": 16, "noise_level": 0.2, "seed": 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name()).To(Equal("ps"))
		Expect(c.NumSamples()).To(Equal(16))
		Expect(c.InitParams().NoiseLevel).To(Equal(0.2))

		c, err = control.New("mppi", pend, map[string]float64{"num_samples": 8, "noise_level": 0.1, "temperature": 0.5})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.InitParams().Temperature).To(Equal(0.5))
	})

	It("rejects unknown names and keys", func() {
		_, err := control.New("cem", pend, nil)
		Expect(err).To(MatchError(control.ErrUnknownAlgorithm))

		_, err = control.New("ps", pend, map[string]float64{"num_samples": 8, "noise_level": 0.1, "temperature": 1})
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))

		_, err = control.New("ps", pend, map[string]float64{"num_samples": 8.5, "noise_level": 0.1})
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
	})

	It("lists algorithms and their keys", func() {
		Expect(control.Algorithms()).To(Equal([]string{"mppi", "ps"}))
		Expect(control.Keys("mppi")).To(ContainElement("temperature"))
		Expect(control.Keys("ps")).NotTo(ContainElement("temperature"))
	})
})
