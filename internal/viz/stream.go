package viz

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/mpc"
)

// Frame is one rendered plant state with its site positions in the order of
// the model's site list.
type Frame struct {
	State   dynamo.State
	Control dynamo.Control
	Time    float64
	Sites   []dynamo.Vec3
}

// Plan is the display summary of a finished plan. Paths holds the trace
// site paths of the lowest cost candidates, best first.
type Plan struct {
	Step     int
	Lag      int
	Cost     float64
	Duration time.Duration
	Paths    [][]dynamo.Vec3
}

// Stream adapts loop callbacks into channels a viewer can drain. Sends never
// block the loop: when the viewer falls behind, frames are dropped.
type Stream struct {
	model    *dynamo.Model
	interval float64
	paths    int

	frames chan Frame
	plans  chan Plan
	done   chan struct{}

	mu        sync.Mutex
	lastFrame float64
	closeOnce sync.Once
}

// NewStream emits at most frequency frames per simulated second (0 emits
// every step) and keeps up to paths candidate traces per plan.
func NewStream(model *dynamo.Model, frequency float64, paths int) *Stream {
	interval := 0.0
	if frequency > 0 {
		interval = 1 / frequency
	}
	return &Stream{
		model:     model,
		interval:  interval,
		paths:     paths,
		frames:    make(chan Frame, 1),
		plans:     make(chan Plan, 4),
		done:      make(chan struct{}),
		lastFrame: math.Inf(-1),
	}
}

func (s *Stream) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	s.mu.Lock()
	due := t-s.lastFrame >= s.interval-1e-9
	if due {
		s.lastFrame = t
	}
	s.mu.Unlock()
	if !due {
		return
	}

	f := Frame{State: x.Clone(), Control: u.Clone(), Time: t}
	for _, name := range s.model.Sites() {
		p, err := s.model.SitePos(name, x)
		if err != nil {
			continue
		}
		f.Sites = append(f.Sites, p)
	}

	select {
	case s.frames <- f:
	default:
		// Replace a stale frame rather than queue behind it.
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- f:
		default:
		}
	}
}

func (s *Stream) OnPlan(r mpc.PlanReport) {
	p := Plan{Step: r.Step, Lag: r.Lag, Cost: r.Cost, Duration: r.Duration}
	if r.Batch != nil && s.paths > 0 {
		p.Paths = bestPaths(r.Batch.TotalCosts(), r.Batch.Traces, s.paths)
	}
	select {
	case s.plans <- p:
	default:
	}
}

// Close signals the viewer that no more frames will arrive.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// bestPaths flattens the traces of the n cheapest finite candidates into
// one path per trace site.
func bestPaths(totals []float64, traces [][][]dynamo.Vec3, n int) [][]dynamo.Vec3 {
	if len(traces) == 0 {
		return nil
	}
	order := make([]int, 0, len(totals))
	for k, c := range totals {
		if !math.IsInf(c, 0) && !math.IsNaN(c) && k < len(traces) {
			order = append(order, k)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return totals[order[i]] < totals[order[j]] })
	if len(order) > n {
		order = order[:n]
	}

	var paths [][]dynamo.Vec3
	for _, k := range order {
		rows := traces[k]
		if len(rows) == 0 {
			continue
		}
		for site := range rows[0] {
			path := make([]dynamo.Vec3, 0, len(rows))
			for _, row := range rows {
				if site < len(row) {
					path = append(path, row[site])
				}
			}
			paths = append(paths, path)
		}
	}
	return paths
}
