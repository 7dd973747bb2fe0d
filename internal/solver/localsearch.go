package solver

import (
	"context"
	"time"
)

const improveEps = 1e-6

// workRoute is the mutable in-search representation of one route.
type workRoute struct {
	vi    int
	order []int
	sched routeSchedule
}

type searchStats struct {
	passes   int
	accepted int
	repairs  int
}

// acceptMode selects the acceptance rule for a scan.
type acceptMode int

const (
	// acceptRepair takes any move that strictly reduces total violation
	// magnitude, cost regardless.
	acceptRepair acceptMode = iota
	// acceptImprove takes strict cost reductions that never turn a feasible
	// route infeasible nor grow total violation.
	acceptImprove
)

// search improves a set of routes in place with first-improvement scans of
// the enabled neighborhoods: intra-route 2-opt, intra-route Or-opt (chains of
// 1-3 stops), inter-route relocate, inter-route swap, in that priority order.
// While any route is infeasible, repair scans run ahead of optimizing scans.
type search struct {
	p     *Problem
	rs    []workRoute
	moves MoveSet
	stats searchStats
}

// improve runs passes until a local optimum (no accepted move in a full
// pass), the iteration cap, the deadline, or cancellation. Cancellation and
// deadline are checked at pass boundaries only, never mid-move.
func (p *Problem) improve(ctx context.Context, rs []workRoute, cfg Config, deadline time.Time) ([]workRoute, SolutionState, searchStats) {
	s := &search{p: p, rs: rs, moves: cfg.Moves}
	state := FeasibleSearch
	if s.totalViolation() > 0 {
		state = InfeasibleSearch
	}
	for {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if cfg.MaxIterations > 0 && s.stats.passes >= cfg.MaxIterations {
			break
		}
		n := s.pass()
		s.stats.passes++
		if state == InfeasibleSearch && s.totalViolation() == 0 {
			state = FeasibleSearch
		}
		if n == 0 {
			break // local optimum
		}
	}
	return s.rs, state, s.stats
}

func (s *search) totalViolation() float64 {
	v := 0.0
	for i := range s.rs {
		v += s.rs[i].sched.violation()
	}
	return v
}

func (s *search) pass() int {
	n := 0
	if s.totalViolation() > 0 {
		n += s.scan(acceptRepair)
	}
	n += s.scan(acceptImprove)
	return n
}

// scan walks all enabled neighborhoods in priority order.
func (s *search) scan(mode acceptMode) int {
	n := 0
	if s.moves.TwoOpt {
		n += s.twoOptScan(mode)
	}
	if s.moves.OrOpt {
		n += s.orOptScan(mode)
	}
	if s.moves.Relocate {
		n += s.relocateScan(mode)
	}
	if s.moves.Swap {
		n += s.swapScan(mode)
	}
	return n
}

// try evaluates replacing the orders of routes ris with orders; applies and
// reports true when the mode's acceptance rule holds.
func (s *search) try(mode acceptMode, ris []int, orders [][]int) bool {
	oldCost, oldViol := 0.0, 0.0
	newScheds := make([]routeSchedule, len(ris))
	newCost, newViol := 0.0, 0.0
	turnsInfeasible := false
	for k, ri := range ris {
		old := s.rs[ri].sched
		oldCost += old.costMiles
		oldViol += old.violation()
		sc := s.p.schedule(s.rs[ri].vi, orders[k])
		newScheds[k] = sc
		newCost += sc.costMiles
		newViol += sc.violation()
		if old.feasible && !sc.feasible {
			turnsInfeasible = true
		}
	}
	ok := false
	switch mode {
	case acceptRepair:
		ok = newViol < oldViol-improveEps
	case acceptImprove:
		ok = newCost < oldCost-improveEps && !turnsInfeasible && newViol <= oldViol+improveEps
	}
	if !ok {
		return false
	}
	for k, ri := range ris {
		s.rs[ri].order = orders[k]
		s.rs[ri].sched = newScheds[k]
	}
	s.stats.accepted++
	if mode == acceptRepair {
		s.stats.repairs++
	}
	return true
}

// twoOptScan reverses intra-route segments.
func (s *search) twoOptScan(mode acceptMode) int {
	n := 0
	for ri := range s.rs {
		ord := s.rs[ri].order
		for i := 0; i < len(ord)-1; i++ {
			for j := i + 1; j < len(ord); j++ {
				cand := append([]int(nil), s.rs[ri].order...)
				for a, b := i, j; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if s.try(mode, []int{ri}, [][]int{cand}) {
					n++
					ord = s.rs[ri].order
				}
			}
		}
	}
	return n
}

// orOptScan relocates chains of 1-3 consecutive stops within their route.
func (s *search) orOptScan(mode acceptMode) int {
	n := 0
	for ri := range s.rs {
		for length := 1; length <= 3; length++ {
			for i := 0; i+length <= len(s.rs[ri].order); i++ {
				for j := 0; j <= len(s.rs[ri].order)-length; j++ {
					if j == i {
						continue
					}
					ord := s.rs[ri].order
					chain := append([]int(nil), ord[i:i+length]...)
					rest := make([]int, 0, len(ord)-length)
					rest = append(rest, ord[:i]...)
					rest = append(rest, ord[i+length:]...)
					cand := make([]int, 0, len(ord))
					cand = append(cand, rest[:j]...)
					cand = append(cand, chain...)
					cand = append(cand, rest[j:]...)
					if s.try(mode, []int{ri}, [][]int{cand}) {
						n++
					}
				}
			}
		}
	}
	return n
}

// relocateScan moves one stop to a different route.
func (s *search) relocateScan(mode acceptMode) int {
	if len(s.rs) < 2 {
		return 0
	}
	n := 0
	for a := range s.rs {
		for i := 0; i < len(s.rs[a].order); i++ {
			moved := false
			for b := range s.rs {
				if b == a {
					continue
				}
				for pos := 0; pos <= len(s.rs[b].order); pos++ {
					ordA := s.rs[a].order
					site := ordA[i]
					candA := make([]int, 0, len(ordA)-1)
					candA = append(candA, ordA[:i]...)
					candA = append(candA, ordA[i+1:]...)
					candB := insertAt(s.rs[b].order, site, pos)
					if s.try(mode, []int{a, b}, [][]int{candA, candB}) {
						n++
						moved = true
						break
					}
				}
				if moved {
					break
				}
			}
			if moved {
				i-- // the stop at i changed
			}
		}
	}
	return n
}

// swapScan exchanges one stop between two routes.
func (s *search) swapScan(mode acceptMode) int {
	if len(s.rs) < 2 {
		return 0
	}
	n := 0
	for a := 0; a < len(s.rs); a++ {
		for b := a + 1; b < len(s.rs); b++ {
			for i := 0; i < len(s.rs[a].order); i++ {
				for j := 0; j < len(s.rs[b].order); j++ {
					candA := append([]int(nil), s.rs[a].order...)
					candB := append([]int(nil), s.rs[b].order...)
					candA[i], candB[j] = candB[j], candA[i]
					if s.try(mode, []int{a, b}, [][]int{candA, candB}) {
						n++
					}
				}
			}
		}
	}
	return n
}
