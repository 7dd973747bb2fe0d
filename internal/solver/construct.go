package solver

import (
	"math"
)

const costEps = 1e-9

// insertion is one candidate placement considered during construction.
type insertion struct {
	slot  int // index into the unplaced list, -1 when unset
	pos   int
	delta float64
	sched routeSchedule
}

// constructRoute builds an initial visit order for one cluster by
// time-window-aware cheapest insertion: repeatedly insert the unplaced site
// whose best feasible position adds the least cost, ties broken by lowest
// site id then earliest position. A site with no feasible position anywhere
// is forced in at its least-cost position and the route simply comes back
// infeasible; construction never drops a site.
func (p *Problem) constructRoute(vi int, cluster []int) []int {
	order := make([]int, 0, len(cluster))
	unplaced := append([]int(nil), cluster...)
	cur := p.schedule(vi, order)
	for len(unplaced) > 0 {
		bestFeas := insertion{slot: -1, delta: math.MaxFloat64}
		bestAny := insertion{slot: -1, delta: math.MaxFloat64}
		for slot := range unplaced {
			for pos := 0; pos <= len(order); pos++ {
				trial := insertAt(order, unplaced[slot], pos)
				sc := p.schedule(vi, trial)
				c := insertion{slot: slot, pos: pos, delta: sc.costMiles - cur.costMiles, sched: sc}
				// feasible here means the insertion adds no violation
				// beyond what the route already carries
				if sc.lateMin <= cur.lateMin+costEps && sc.overCap <= cur.overCap+costEps {
					if p.betterInsertion(c, bestFeas, unplaced) {
						bestFeas = c
					}
				}
				if p.betterInsertion(c, bestAny, unplaced) {
					bestAny = c
				}
			}
		}
		pick := bestFeas
		if pick.slot < 0 {
			pick = bestAny
		}
		order = insertAt(order, unplaced[pick.slot], pick.pos)
		cur = pick.sched
		unplaced = append(unplaced[:pick.slot], unplaced[pick.slot+1:]...)
	}
	return order
}

// betterInsertion orders candidates by (delta, site id, position).
func (p *Problem) betterInsertion(a, b insertion, unplaced []int) bool {
	if b.slot < 0 {
		return true
	}
	if a.delta < b.delta-costEps {
		return true
	}
	if a.delta > b.delta+costEps {
		return false
	}
	ida, idb := p.sites[unplaced[a.slot]].ID, p.sites[unplaced[b.slot]].ID
	if ida != idb {
		return ida < idb
	}
	return a.pos < b.pos
}

// insertAt returns a new slice with site inserted at pos.
func insertAt(order []int, site, pos int) []int {
	out := make([]int, 0, len(order)+1)
	out = append(out, order[:pos]...)
	out = append(out, site)
	out = append(out, order[pos:]...)
	return out
}
