package optim

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Objective scores one hyperparameter assignment; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	parallel   int
}

// NewGridSearch explores the cartesian product of ranges, evaluating up to
// parallel points at once (0 or less means one at a time).
func NewGridSearch(params []string, ranges [][]float64, parallel int) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, dynamo.InvalidConfigf("grid search needs one range per parameter, got %d names and %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, dynamo.InvalidConfigf("empty range for %s", params[i])
		}
	}
	if parallel < 1 {
		parallel = 1
	}
	return &GridSearch{paramNames: params, ranges: ranges, parallel: parallel}, nil
}

func (g *GridSearch) points() []map[string]float64 {
	var out []map[string]float64
	var walk func(depth int, current map[string]float64)
	walk = func(depth int, current map[string]float64) {
		if depth == len(g.paramNames) {
			out = append(out, current)
			return
		}
		for _, val := range g.ranges[depth] {
			next := make(map[string]float64, len(current)+1)
			for k, v := range current {
				next[k] = v
			}
			next[g.paramNames[depth]] = val
			walk(depth+1, next)
		}
	}
	walk(0, map[string]float64{})
	return out
}

// Search evaluates every grid point merged over base and returns the best
// assignment and all trials in grid order. Points whose objective fails are
// recorded with their error and score +Inf; only context errors abort.
func (g *GridSearch) Search(ctx context.Context, base map[string]float64, objective Objective) (map[string]float64, float64, []Trial, error) {
	points := g.points()
	trials := make([]Trial, len(points))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallel)

	var mu sync.Mutex
	for i, pt := range points {
		params := make(map[string]float64, len(base)+len(pt))
		for k, v := range base {
			params[k] = v
		}
		for k, v := range pt {
			params[k] = v
		}

		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			score, err := objective(ectx, params)
			if err != nil && ectx.Err() != nil {
				return ectx.Err()
			}
			if err != nil || math.IsNaN(score) {
				score = math.Inf(1)
			}
			mu.Lock()
			trials[i] = Trial{Params: params, Score: score, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, math.Inf(1), nil, err
	}

	order := make([]int, len(trials))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return trials[order[a]].Score < trials[order[b]].Score })

	best := trials[order[0]]
	return best.Params, best.Score, trials, nil
}
