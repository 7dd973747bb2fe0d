package solver

import (
	"fmt"
)

// Problem is an immutable snapshot of one solve: sites, fleet, resolved depot,
// and the fully built distance matrix. Workers share it read-only.
type Problem struct {
	sites    []Site
	vehicles []Vehicle
	depot    LatLng
	matrix   *Matrix
	siteIdx  map[string]int
	vehIdx   map[string]int
}

// NewProblem validates the inputs and builds the distance matrix once. All
// later schedule and cost computations read the matrix without locking.
func NewProblem(sites []Site, vehicles []Vehicle, speedMPH float64, metric Metric) (*Problem, error) {
	if len(sites) == 0 {
		return nil, ErrNoSites
	}
	if len(vehicles) == 0 {
		return nil, ErrNoVehicles
	}
	siteIdx := make(map[string]int, len(sites))
	for i, s := range sites {
		if s.ID == "" {
			return nil, fmt.Errorf("site at index %d has empty id", i)
		}
		if s.Demand < 0 {
			return nil, fmt.Errorf("site %q has negative demand", s.ID)
		}
		if _, dup := siteIdx[s.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		siteIdx[s.ID] = i
	}
	vehIdx := make(map[string]int, len(vehicles))
	for i, v := range vehicles {
		if v.ID == "" {
			return nil, fmt.Errorf("vehicle at index %d has empty id", i)
		}
		if _, dup := vehIdx[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle id %q", v.ID)
		}
		vehIdx[v.ID] = i
	}
	depot := resolveDepot(sites, vehicles)
	return &Problem{
		sites:    sites,
		vehicles: vehicles,
		depot:    depot,
		matrix:   BuildMatrix(depot, sites, speedMPH, metric),
		siteIdx:  siteIdx,
		vehIdx:   vehIdx,
	}, nil
}

// resolveDepot uses the first vehicle that declares a depot; when none does,
// the first site stands in, matching the original planning behavior.
func resolveDepot(sites []Site, vehicles []Vehicle) LatLng {
	for _, v := range vehicles {
		if v.Depot != nil {
			return *v.Depot
		}
	}
	return sites[0].Loc
}

// Matrix exposes the distance oracle built for this problem.
func (p *Problem) Matrix() *Matrix { return p.matrix }

// Depot returns the resolved depot location.
func (p *Problem) Depot() LatLng { return p.depot }

// site matrix row for site index i (depot occupies row 0).
func (p *Problem) mrow(i int) int { return i + 1 }

// CheckRoute recomputes schedule and load for an explicit visit order. It is
// the external face of the feasibility checker used internally by
// construction and local search.
func (p *Problem) CheckRoute(vehicleID string, siteIDs []string) (Route, error) {
	vi, ok := p.vehIdx[vehicleID]
	if !ok {
		return Route{}, fmt.Errorf("unknown vehicle %q", vehicleID)
	}
	order := make([]int, len(siteIDs))
	for k, id := range siteIDs {
		i, ok := p.siteIdx[id]
		if !ok {
			return Route{}, &UnknownSiteError{ID: id}
		}
		order[k] = i
	}
	return p.buildRoute(vi, order), nil
}

// buildRoute materializes the public Route from an internal visit order.
func (p *Problem) buildRoute(vi int, order []int) Route {
	sc := p.schedule(vi, order)
	stops := make([]Stop, len(order))
	for k, i := range order {
		stops[k] = Stop{
			SiteID:    p.sites[i].ID,
			ArriveMin: sc.arrive[k],
			WaitMin:   sc.wait[k],
			DepartMin: sc.depart[k],
			Load:      sc.load[k],
		}
	}
	return Route{
		VehicleID:    p.vehicles[vi].ID,
		Stops:        stops,
		CostMiles:    sc.costMiles,
		DriveMin:     sc.driveMin,
		Feasible:     sc.feasible,
		LateMin:      sc.lateMin,
		OverCapacity: sc.overCap,
	}
}
