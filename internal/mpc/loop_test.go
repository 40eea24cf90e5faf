package mpc_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/samplempc/internal/control"
	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/integrators"
	"github.com/san-kum/samplempc/internal/logging"
	"github.com/san-kum/samplempc/internal/mpc"
	"github.com/san-kum/samplempc/internal/rollout"
	"github.com/san-kum/samplempc/internal/task"
)

// scripted returns a fresh plan on every call whose row i is 100*call + i,
// and records the params it was handed.
type scripted struct {
	mu    sync.Mutex
	delay time.Duration
	err   error
	seen  []control.Params
}

func (s *scripted) Optimize(ctx context.Context, x dynamo.State, p control.Params) (control.Params, *rollout.Batch, error) {
	s.mu.Lock()
	call := len(s.seen)
	s.seen = append(s.seen, p.Clone())
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return p, nil, ctx.Err()
		}
	}
	if s.err != nil {
		return p, nil, s.err
	}

	r, c := p.Mean.Dims()
	mean := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			mean.Set(i, j, float64(100*call+i)*1e-3)
		}
	}
	out := p
	out.Mean = mean
	batch := &rollout.Batch{
		Costs:    mat.NewDense(1, 1, []float64{float64(call)}),
		Controls: []*mat.Dense{mean},
	}
	return out, batch, nil
}

func (s *scripted) calls() []control.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]control.Params(nil), s.seen...)
}

// concurrency tracks how many Optimize calls overlap.
type concurrency struct {
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (c *concurrency) Optimize(ctx context.Context, x dynamo.State, p control.Params) (control.Params, *rollout.Batch, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		old := c.peak.Load()
		if n <= old || c.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
	return p, nil, nil
}

func (c *concurrency) max() int32 {
	return c.peak.Load()
}

type reports struct {
	mu  sync.Mutex
	all []mpc.PlanReport
}

func (r *reports) OnPlan(p mpc.PlanReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, p)
}

func (r *reports) list() []mpc.PlanReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mpc.PlanReport(nil), r.all...)
}

type unstable struct{}

func (unstable) StateDim() int   { return 2 }
func (unstable) ControlDim() int { return 1 }
func (unstable) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], u[0] * math.Inf(1)}
}

type unstableTask struct {
	task.Base
}

func (unstableTask) Name() string                                         { return "unstable" }
func (unstableTask) RunningCost(x dynamo.State, u dynamo.Control) float64 { return 0 }
func (unstableTask) TerminalCost(x dynamo.State) float64                  { return 0 }

var _ = Describe("Loop", func() {
	var (
		ctx  context.Context
		pend *task.Pendulum
		init control.Params
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		pend, err = task.NewPendulum()
		Expect(err).NotTo(HaveOccurred())
		init = control.Params{Mean: mat.NewDense(pend.PlanningHorizon()-1, 1, nil)}
	})

	Describe("RunSteps", func() {
		It("warm-starts each plan with the previous plan shifted by one", func() {
			planner := &scripted{}
			loop := mpc.New(pend, planner, init, nil)

			_, err := loop.RunSteps(ctx, pend.ResetState(), 6)
			Expect(err).NotTo(HaveOccurred())

			calls := planner.calls()
			Expect(calls).To(HaveLen(6))
			rows := pend.PlanningHorizon() - 1
			for n := 1; n < len(calls); n++ {
				in := calls[n].Mean
				for i := 0; i < rows-1; i++ {
					Expect(in.At(i, 0)).To(Equal(float64(100*(n-1)+i+1) * 1e-3))
				}
				Expect(in.At(rows-1, 0)).To(Equal(in.At(rows-2, 0)))
			}
		})

		It("applies the first control of each new plan", func() {
			planner := &scripted{}
			loop := mpc.New(pend, planner, init, nil)

			res, err := loop.RunSteps(ctx, pend.ResetState(), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Controls).To(HaveLen(4))
			for n, u := range res.Controls {
				Expect(u[0]).To(Equal(float64(100*n) * 1e-3))
			}
			Expect(res.PlanCosts).To(Equal([]float64{0, 1, 2, 3}))
			Expect(loop.Stats().Plans).To(Equal(4))
		})

		It("advances the plant one control period per step", func() {
			loop := mpc.New(pend, &scripted{}, init, nil)
			_, err := loop.RunSteps(ctx, pend.ResetState(), 5)
			Expect(err).NotTo(HaveOccurred())
			_, t := loop.State()
			Expect(t).To(BeNumerically("~", 5*pend.ControlPeriod(), 1e-9))
		})

		It("moves the pendulum with predictive sampling", func() {
			ps, err := control.NewPredictiveSampling(pend, control.Config{NumSamples: 16, NoiseLevel: 0.3})
			Expect(err).NotTo(HaveOccurred())
			loop := mpc.New(pend, ps, ps.InitParams(), nil)

			res, err := loop.RunSteps(ctx, pend.ResetState(), 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.States).To(HaveLen(20))

			swing := 0.0
			for _, x := range res.States {
				Expect(x.IsValid()).To(BeTrue())
				swing = math.Max(swing, math.Abs(x[0]))
			}
			Expect(swing).To(BeNumerically(">", 0.1))
			for _, c := range res.PlanCosts {
				Expect(math.IsInf(c, 0) || math.IsNaN(c)).To(BeFalse())
			}
		})

		It("propagates planner failures", func() {
			boom := errors.New("boom")
			loop := mpc.New(pend, &scripted{err: boom}, init, nil)
			_, err := loop.RunSteps(ctx, pend.ResetState(), 3)
			Expect(err).To(MatchError(boom))
		})

		It("halts when the plant diverges", func() {
			model, err := dynamo.NewModel("unstable", unstable{}, integrators.NewEuler(), 0.01)
			Expect(err).NotTo(HaveOccurred())
			base, err := task.NewBase(model, 4, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			tk := unstableTask{Base: base}

			loop := mpc.New(tk, &scripted{}, control.Params{Mean: mat.NewDense(3, 1, nil)}, nil)
			_, err = loop.RunSteps(ctx, dynamo.State{0, 0}, 3)
			Expect(err).To(MatchError(dynamo.ErrDivergentSimulation))
		})
	})

	Describe("Run", func() {
		It("keeps pace with a fast planner", func() {
			planner := &scripted{}
			rep := &reports{}
			loop := mpc.New(pend, planner, init, nil)
			loop.AddPlanObserver(rep)

			res, err := loop.Run(ctx, pend.ResetState(), mpc.Config{Frequency: 50, Duration: 0.2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.States).To(HaveLen(10))
			Expect(loop.Stats().ControlSteps).To(Equal(10))
			Expect(len(rep.list())).To(BeNumerically(">=", 5))
			for _, r := range rep.list() {
				Expect(r.Lag).To(BeNumerically(">=", 1))
			}
		})

		It("holds the last control and counts overruns for a slow planner", func() {
			planner := &scripted{delay: 70 * time.Millisecond}
			rep := &reports{}
			var logs bytes.Buffer
			loop := mpc.New(pend, planner, init, logging.New(&logs, slog.LevelWarn, true))
			loop.AddPlanObserver(rep)

			res, err := loop.Run(ctx, pend.ResetState(), mpc.Config{Frequency: 50, Duration: 0.4})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.States).To(HaveLen(20))
			Expect(logs.String()).To(ContainSubstring("planning overrun"))
			Expect(logs.String()).To(ContainSubstring("overran the control period"))

			stats := loop.Stats()
			Expect(stats.Overruns).To(BeNumerically(">", 0))
			Expect(res.Overruns).To(Equal(stats.Overruns))
			Expect(stats.Plans).To(BeNumerically(">=", 1))
			for _, r := range rep.list() {
				Expect(r.Lag).To(BeNumerically(">=", 2))
			}

			// Before the first plan lands the initial zero plan is held.
			Expect(res.Controls[0][0]).To(BeZero())
			Expect(res.Controls[1][0]).To(BeZero())
		})

		It("never runs two plans at once", func() {
			planner := &concurrency{delay: 30 * time.Millisecond}
			loop := mpc.New(pend, planner, init, nil)
			_, err := loop.Run(ctx, pend.ResetState(), mpc.Config{Frequency: 100, Duration: 0.2})
			Expect(err).NotTo(HaveOccurred())
			Expect(planner.max()).To(Equal(int32(1)))
		})

		It("stops when the context is done", func() {
			cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			loop := mpc.New(pend, &scripted{delay: time.Second}, init, nil)

			start := time.Now()
			_, err := loop.Run(cctx, pend.ResetState(), mpc.Config{Frequency: 50})
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(time.Since(start)).To(BeNumerically("<", 900*time.Millisecond))
		})

		It("rejects a bad frequency", func() {
			loop := mpc.New(pend, &scripted{}, init, nil)
			_, err := loop.Run(ctx, pend.ResetState(), mpc.Config{Frequency: -1})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfiguration))
		})
	})
})
