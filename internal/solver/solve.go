package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// subSeedStride separates restart RNG streams derived from one seed.
const subSeedStride = 1000003

// Solve runs the full pipeline: distance matrix, clustering, cheapest
// insertion, local search, across cfg.Restarts independent seeded attempts
// bounded by cfg.Workers, and returns the best Final solution ordered by
// (feasible, cost). Cancellation is cooperative and returns the best
// solution found so far, never an error; a solution that exhausts the budget
// with residual violations comes back with Feasible=false rather than
// failing.
func Solve(ctx context.Context, sites []Site, vehicles []Vehicle, cfg Config) (*Solution, Metrics, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, Metrics{}, err
	}
	cfg = cfg.withDefaults()
	p, err := NewProblem(sites, vehicles, cfg.SpeedMPH, nil)
	if err != nil {
		return nil, Metrics{}, err
	}
	// surfaces UnserviceableSiteError before any restart runs; no partial
	// solution escapes in that case
	if _, _, err := p.clusterSites(cfg.Clusters, rand.New(rand.NewSource(cfg.Seed))); err != nil {
		return nil, Metrics{}, err
	}

	var deadline time.Time
	if cfg.TimeBudget > 0 {
		deadline = start.Add(cfg.TimeBudget)
	}

	type result struct {
		sol   *Solution
		stats searchStats
	}
	results := make([]result, 0, cfg.Restarts)

	// restart 0 always runs, so cancellation before or during the solve
	// still yields a solution
	first := p.runRestart(ctx, 0, cfg, deadline)
	results = append(results, result{sol: first.sol, stats: first.stats})

	if cfg.Restarts > 1 {
		jobs := make(chan int)
		out := make(chan result, cfg.Restarts-1)
		workers := cfg.Workers
		if workers > cfg.Restarts-1 {
			workers = cfg.Restarts - 1
		}
		for w := 0; w < workers; w++ {
			go func() {
				for r := range jobs {
					rr := p.runRestart(ctx, r, cfg, deadline)
					out <- result{sol: rr.sol, stats: rr.stats}
				}
			}()
		}
		dispatched := 0
		for r := 1; r < cfg.Restarts; r++ {
			if ctx.Err() != nil {
				break
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				break
			}
			jobs <- r
			dispatched++
		}
		close(jobs)
		for i := 0; i < dispatched; i++ {
			results = append(results, <-out)
		}
	}

	// deterministic best: feasible first, then cost, then restart index
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].sol, results[j].sol
		if a.Feasible != b.Feasible {
			return a.Feasible
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Restart < b.Restart
	})
	best := results[0].sol

	m := Metrics{
		Restarts: len(results),
		BestCost: best.Cost,
		Feasible: best.Feasible,
		Elapsed:  time.Since(start),
	}
	for _, r := range results {
		m.Iterations += r.stats.passes
		m.AcceptedMoves += r.stats.accepted
		m.RepairMoves += r.stats.repairs
	}
	return best, m, nil
}

type restartResult struct {
	sol   *Solution
	stats searchStats
}

// runRestart executes one full construction + improvement attempt with its
// own derived RNG stream.
func (p *Problem) runRestart(ctx context.Context, restart int, cfg Config, deadline time.Time) restartResult {
	seed := cfg.Seed + int64(restart)*subSeedStride
	rng := rand.New(rand.NewSource(seed))

	// the unserviceable case was rejected up front, so clustering cannot
	// fail here
	clusters, vis, _ := p.clusterSites(cfg.Clusters, rng)

	rs := make([]workRoute, len(clusters))
	for ci, cluster := range clusters {
		vi := vis[ci]
		order := p.constructRoute(vi, cluster)
		rs[ci] = workRoute{vi: vi, order: order, sched: p.schedule(vi, order)}
	}
	p.emit(cfg, restart, UnderConstruction, rs, 0)

	rs, state, stats := p.improve(ctx, rs, cfg, deadline)
	p.emit(cfg, restart, state, rs, stats.passes)

	sol := p.finalize(rs, seed, restart)
	p.emit(cfg, restart, Final, rs, stats.passes)
	return restartResult{sol: sol, stats: stats}
}

func (p *Problem) emit(cfg Config, restart int, state SolutionState, rs []workRoute, iters int) {
	if cfg.Progress == nil {
		return
	}
	cost, viol := 0.0, 0.0
	for i := range rs {
		cost += rs[i].sched.costMiles
		viol += rs[i].sched.violation()
	}
	cfg.Progress(ProgressEvent{
		Restart:    restart,
		State:      state,
		Cost:       cost,
		Feasible:   viol == 0,
		Iterations: iters,
	})
}

// finalize freezes work routes into an immutable Final solution.
func (p *Problem) finalize(rs []workRoute, seed int64, restart int) *Solution {
	sol := &Solution{
		Routes:   make([]Route, len(rs)),
		State:    Final,
		Feasible: true,
		Seed:     seed,
		Restart:  restart,
	}
	for i := range rs {
		rt := p.buildRoute(rs[i].vi, rs[i].order)
		sol.Routes[i] = rt
		sol.Cost += rt.CostMiles
		if !rt.Feasible {
			sol.Feasible = false
		}
	}
	return sol
}
