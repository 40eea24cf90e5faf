package rollout_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/integrators"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

// fragile behaves like an oscillator until pushed harder than 1, then blows up.
type fragile struct{}

func (fragile) StateDim() int   { return 2 }
func (fragile) ControlDim() int { return 1 }
func (fragile) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	if u[0] > 1 {
		return dynamo.State{x[1], math.Inf(1)}
	}
	return dynamo.State{x[1], -x[0] + u[0]}
}

type fragileTask struct {
	task.Base
}

func (fragileTask) Name() string { return "fragile" }
func (fragileTask) RunningCost(x dynamo.State, u dynamo.Control) float64 {
	return x[0]*x[0] + u[0]*u[0]
}
func (fragileTask) TerminalCost(x dynamo.State) float64 { return 10 * x[0] * x[0] }

// sitedTask asks for a trace site its model cannot locate.
type sitedTask struct {
	fragileTask
}

func (sitedTask) TraceSites() []string { return []string{"tip"} }

func constantPlan(rows, cols int, v float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(rows, cols, data)
}

var _ = Describe("Evaluator", func() {
	var (
		ctx  context.Context
		pend *task.Pendulum
		eval *rollout.Evaluator
		h    int
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		pend, err = task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		eval = rollout.NewEvaluator(pend)
		h = pend.PlanningHorizon()
	})

	candidates := func(values ...float64) []*mat.Dense {
		out := make([]*mat.Dense, len(values))
		for i, v := range values {
			out[i] = constantPlan(h-1, 1, v)
		}
		return out
	}

	It("returns K x H costs, K x H observations and K x (H-1) controls", func() {
		batch, err := eval.Eval(ctx, pend.ResetState(), candidates(0, 0.5, -0.5, 1, -1))
		Expect(err).NotTo(HaveOccurred())

		r, c := batch.Costs.Dims()
		Expect(r).To(Equal(5))
		Expect(c).To(Equal(h))
		Expect(batch.Observations).To(HaveLen(5))
		Expect(batch.Controls).To(HaveLen(5))
		for k := 0; k < 5; k++ {
			Expect(batch.Observations[k]).To(HaveLen(h))
			Expect(batch.Observations[k][0]).To(HaveLen(2))
			cr, cc := batch.Controls[k].Dims()
			Expect(cr).To(Equal(h - 1))
			Expect(cc).To(Equal(1))
			Expect(batch.Traces[k]).To(HaveLen(h))
		}
	})

	It("produces finite costs for bounded controls", func() {
		batch, err := eval.Eval(ctx, pend.ResetState(), candidates(0, 2, -2, 5, -5))
		Expect(err).NotTo(HaveOccurred())
		for _, v := range batch.Costs.RawMatrix().Data {
			Expect(math.IsInf(v, 0) || math.IsNaN(v)).To(BeFalse())
		}
		Expect(batch.DivergedCount()).To(BeZero())
	})

	It("is bit-reproducible", func() {
		plans := candidates(0.3, -0.7, 1.1)
		a, err := eval.Eval(ctx, dynamo.State{0.1, 0.2}, plans)
		Expect(err).NotTo(HaveOccurred())
		b, err := eval.Eval(ctx, dynamo.State{0.1, 0.2}, plans)
		Expect(err).NotTo(HaveOccurred())
		Expect(mat.Equal(a.Costs, b.Costs)).To(BeTrue())
		Expect(a.Observations).To(Equal(b.Observations))
	})

	It("starts every candidate from the same state", func() {
		batch, err := eval.Eval(ctx, dynamo.State{0.4, 0}, candidates(0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2))
		Expect(err).NotTo(HaveOccurred())
		first := batch.Costs.RawRowView(0)
		for k := 1; k < 8; k++ {
			Expect(batch.Costs.RawRowView(k)).To(Equal(first))
			Expect(batch.Observations[k][0]).To(Equal([]float64{0.4, 0}))
		}
	})

	It("merges the terminal cost into the last column", func() {
		x := pend.ResetState()
		plan := constantPlan(h-1, 1, 1.5)
		batch, err := eval.Eval(ctx, x, []*mat.Dense{plan})
		Expect(err).NotTo(HaveOccurred())

		u := dynamo.Control{1.5}
		for t := 0; t < h-1; t++ {
			Expect(batch.Costs.At(0, t)).To(Equal(pend.RunningCost(x, u)))
			x, err = pend.Step(x, u)
			Expect(err).NotTo(HaveOccurred())
		}
		want := pend.RunningCost(x, dynamo.Control{0}) + pend.TerminalCost(x)
		Expect(batch.Costs.At(0, h-1)).To(Equal(want))
		Expect(batch.Observations[0][h-1]).To(Equal(pend.Observation(x)))
	})

	It("does not alias the caller's controls", func() {
		plans := candidates(0.5)
		batch, err := eval.Eval(ctx, pend.ResetState(), plans)
		Expect(err).NotTo(HaveOccurred())
		plans[0].Set(0, 0, 99)
		Expect(batch.Controls[0].At(0, 0)).To(Equal(0.5))
	})

	It("rejects mismatched shapes", func() {
		_, err := eval.Eval(ctx, pend.ResetState(), []*mat.Dense{constantPlan(h, 1, 0)})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		_, err = eval.Eval(ctx, dynamo.State{0, 0, 0}, candidates(0))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		_, err = eval.Eval(ctx, pend.ResetState(), nil)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
	})

	It("stops on a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := eval.Eval(cctx, pend.ResetState(), candidates(0, 0, 0, 0))
		Expect(err).To(MatchError(context.Canceled))
	})

	Context("when a candidate diverges", func() {
		var fe *rollout.Evaluator

		BeforeEach(func() {
			model, err := dynamo.NewModel("fragile", fragile{}, integrators.NewEuler(), 0.01)
			Expect(err).NotTo(HaveOccurred())
			base, err := task.NewBase(model, 6, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			fe = rollout.NewEvaluator(fragileTask{Base: base})
		})

		It("flags it and keeps the others", func() {
			plans := []*mat.Dense{constantPlan(5, 1, 0), constantPlan(5, 1, 2), constantPlan(5, 1, 0.5)}
			batch, err := fe.Eval(ctx, dynamo.State{1, 0}, plans)
			Expect(err).NotTo(HaveOccurred())

			Expect(batch.Diverged).To(Equal([]bool{false, true, false}))
			Expect(math.IsInf(batch.Costs.At(1, 5), 1)).To(BeTrue())
			Expect(math.IsNaN(batch.Observations[1][5][0])).To(BeTrue())

			totals := batch.TotalCosts()
			Expect(math.IsInf(totals[1], 1)).To(BeTrue())
			Expect(math.IsInf(totals[0], 0)).To(BeFalse())

			idx, _, ok := batch.Best()
			Expect(ok).To(BeTrue())
			Expect(idx).NotTo(Equal(1))
		})

		It("fails when a trace site cannot be located", func() {
			model, err := dynamo.NewModel("fragile", fragile{}, integrators.NewEuler(), 0.01)
			Expect(err).NotTo(HaveOccurred())
			base, err := task.NewBase(model, 6, 2, nil)
			Expect(err).NotTo(HaveOccurred())

			se := rollout.NewEvaluator(sitedTask{fragileTask{Base: base}})
			_, err = se.Eval(ctx, dynamo.State{1, 0}, []*mat.Dense{constantPlan(5, 1, 0)})
			Expect(err).To(MatchError(dynamo.ErrUnknownSite))
		})

		It("reports no finite candidate when all diverge", func() {
			plans := []*mat.Dense{constantPlan(5, 1, 3), constantPlan(5, 1, 4)}
			batch, err := fe.Eval(ctx, dynamo.State{1, 0}, plans)
			Expect(err).NotTo(HaveOccurred())
			_, _, ok := batch.Best()
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("Batch", func() {
	It("treats NaN totals as +Inf and breaks ties by first index", func() {
		b := &rollout.Batch{Costs: mat.NewDense(4, 2, []float64{
			1, 1,
			math.NaN(), 0,
			0.5, 1.5,
			3, 0,
		})}
		totals := b.TotalCosts()
		Expect(math.IsInf(totals[1], 1)).To(BeTrue())

		idx, cost, ok := b.Best()
		Expect(ok).To(BeTrue())
		Expect(idx).To(Equal(0))
		Expect(cost).To(Equal(2.0))
	})
})
