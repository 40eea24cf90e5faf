package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/san-kum/samplempc/internal/dynamo"
	"github.com/san-kum/samplempc/internal/mpc"
)

// Planning watches finished plans. Its value is the share of plans that
// landed after more than one control period.
type Planning struct {
	mu      sync.Mutex
	plans   int
	late    int
	cost    float64
	elapsed time.Duration
}

func NewPlanning() *Planning {
	return &Planning{cost: math.NaN()}
}

func (p *Planning) Name() string { return "late_plans" }

func (p *Planning) OnPlan(r mpc.PlanReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans++
	if r.Lag > 1 {
		p.late++
	}
	p.cost = r.Cost
	p.elapsed += r.Duration
}

func (p *Planning) Observe(x dynamo.State, u dynamo.Control, t float64) {}

func (p *Planning) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plans == 0 {
		return 0
	}
	return float64(p.late) / float64(p.plans)
}

// LastCost is the best total cost of the newest plan, NaN before any.
func (p *Planning) LastCost() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cost
}

func (p *Planning) MeanDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plans == 0 {
		return 0
	}
	return p.elapsed / time.Duration(p.plans)
}

func (p *Planning) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans = 0
	p.late = 0
	p.cost = math.NaN()
	p.elapsed = 0
}
