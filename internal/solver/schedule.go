package solver

// routeSchedule is the result of one propagation pass over a visit order:
// per-stop times and cumulative load, totals, and violation magnitudes.
// feasible is false whenever any lateness or capacity overage exists.
type routeSchedule struct {
	arrive []float64
	wait   []float64
	depart []float64
	load   []float64

	costMiles float64
	driveMin  float64
	lateMin   float64
	overCap   float64
	feasible  bool
}

func (sc routeSchedule) violation() float64 { return sc.lateMin + sc.overCap }

// schedule propagates arrival times and load along order in a single pass.
// Arrival at a stop is previous departure plus travel, pushed forward to the
// stop's earliest bound (waiting); lateness past the latest bound and load
// past vehicle capacity accumulate as violation magnitudes. The route starts
// and ends at the depot; vehicle working hours bound the return.
//
// Every feasibility decision in the engine goes through here.
func (p *Problem) schedule(vi int, order []int) routeSchedule {
	v := p.vehicles[vi]
	sc := routeSchedule{
		arrive: make([]float64, len(order)),
		wait:   make([]float64, len(order)),
		depart: make([]float64, len(order)),
		load:   make([]float64, len(order)),
	}
	t := 0.0
	if v.Hours != nil {
		t = v.Hours.EarliestMin
	}
	cur := 0 // depot row
	load := 0.0
	for k, i := range order {
		row := p.mrow(i)
		sc.costMiles += p.matrix.costIdx(cur, row)
		travel := p.matrix.timeIdx(cur, row)
		sc.driveMin += travel
		arr := t + travel
		wait := 0.0
		s := p.sites[i]
		if s.Window != nil && arr < s.Window.EarliestMin {
			wait = s.Window.EarliestMin - arr
			arr = s.Window.EarliestMin
		}
		if s.Window != nil && arr > s.Window.LatestMin {
			sc.lateMin += arr - s.Window.LatestMin
		}
		load += s.Demand
		if v.Capacity > 0 && load > v.Capacity {
			over := load - v.Capacity
			if over > sc.overCap {
				sc.overCap = over
			}
		}
		sc.arrive[k] = arr
		sc.wait[k] = wait
		sc.depart[k] = arr + s.ServiceMin
		sc.load[k] = load
		t = sc.depart[k]
		cur = row
	}
	// return leg
	sc.costMiles += p.matrix.costIdx(cur, 0)
	back := p.matrix.timeIdx(cur, 0)
	sc.driveMin += back
	t += back
	if v.Hours != nil && t > v.Hours.LatestMin {
		sc.lateMin += t - v.Hours.LatestMin
	}
	sc.feasible = sc.lateMin == 0 && sc.overCap == 0
	return sc
}
