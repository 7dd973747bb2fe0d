// Package solver implements the VRPTW engine: distance matrix, capacity-aware
// clustering, cheapest-insertion construction, schedule propagation, and
// local-search improvement, driven by a restartable orchestrator.
package solver

import (
	"time"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

// TimeWindow bounds a visit in minutes from the start of the planning day.
// A nil *TimeWindow on a Site means the visit is unconstrained.
type TimeWindow struct {
	EarliestMin float64
	LatestMin   float64
}

// Site is a location to be visited. Immutable once handed to Solve; routes
// reference sites by ID only.
type Site struct {
	ID         string
	Loc        LatLng
	Demand     float64
	Window     *TimeWindow
	ServiceMin float64
}

// Vehicle describes one member of the fleet.
type Vehicle struct {
	ID       string
	Capacity float64
	Depot    *LatLng     // start/end depot; nil falls back to the problem depot
	Hours    *TimeWindow // working hours; bounds the return to depot
}

// MoveSet enables individual local-search neighborhoods.
type MoveSet struct {
	TwoOpt   bool
	OrOpt    bool
	Relocate bool
	Swap     bool
}

// AllMoves enables every neighborhood.
func AllMoves() MoveSet {
	return MoveSet{TwoOpt: true, OrOpt: true, Relocate: true, Swap: true}
}

func (m MoveSet) any() bool { return m.TwoOpt || m.OrOpt || m.Relocate || m.Swap }

// Config is the fixed set of solver options recognized by Solve. Zero values
// select documented defaults; Validate rejects out-of-range settings.
type Config struct {
	// Clusters forces the cluster count K; 0 derives K from demand/capacity.
	Clusters int
	// Seed drives all randomized choices. Same inputs + same seed + same
	// Workers means an identical solution.
	Seed int64
	// Restarts is the number of independent construction attempts.
	Restarts int
	// Workers bounds concurrent restarts. Part of the determinism contract.
	Workers int
	// MaxIterations caps local-search passes per restart; 0 means unlimited
	// (budget- or convergence-bound only).
	MaxIterations int
	// TimeBudget bounds the whole solve; 0 means no wall-clock bound.
	TimeBudget time.Duration
	// SpeedMPH converts distance to travel time. Defaults to 50.
	SpeedMPH float64
	// Moves is the enabled neighborhood set. Zero value enables all moves.
	Moves MoveSet
	// Progress, when set, receives solver events. It may be called from
	// several worker goroutines and must be safe for concurrent use.
	Progress func(ProgressEvent)
}

// ProgressEvent reports the state of one restart.
type ProgressEvent struct {
	Restart    int
	State      SolutionState
	Cost       float64
	Feasible   bool
	Iterations int
}

// SolutionState is the lifecycle of a Solution inside the engine.
type SolutionState int

const (
	UnderConstruction SolutionState = iota
	InfeasibleSearch
	FeasibleSearch
	Final
)

func (s SolutionState) String() string {
	switch s {
	case UnderConstruction:
		return "under_construction"
	case InfeasibleSearch:
		return "infeasible_search"
	case FeasibleSearch:
		return "feasible_search"
	case Final:
		return "final"
	}
	return "unknown"
}

// Stop is one visited site with its propagated schedule.
type Stop struct {
	SiteID    string
	ArriveMin float64
	WaitMin   float64
	DepartMin float64
	// Load is the cumulative load after serving this stop.
	Load float64
}

// Route is an ordered visit sequence for one vehicle, depot implicit at both
// ends. Derived fields are recomputed by the feasibility checker on mutation.
type Route struct {
	VehicleID string
	Stops     []Stop
	CostMiles float64
	DriveMin  float64
	Feasible  bool
	// Violation magnitudes; zero when Feasible.
	LateMin      float64
	OverCapacity float64
}

// SiteIDs returns the visit order by site identifier.
func (r Route) SiteIDs() []string {
	out := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.SiteID
	}
	return out
}

// Solution is a full assignment of sites to vehicle routes. Once State is
// Final the solution is immutable.
type Solution struct {
	Routes   []Route
	Cost     float64
	Feasible bool
	State    SolutionState
	Seed     int64
	Restart  int
}

// Metrics summarizes one Solve call.
type Metrics struct {
	Restarts      int
	Iterations    int
	AcceptedMoves int
	RepairMoves   int
	BestCost      float64
	Feasible      bool
	Elapsed       time.Duration
}

const (
	defaultSpeedMPH = 50.0
	defaultRestarts = 4
)

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.SpeedMPH <= 0 {
		c.SpeedMPH = defaultSpeedMPH
	}
	if c.Restarts <= 0 {
		c.Restarts = defaultRestarts
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if !c.Moves.any() {
		c.Moves = AllMoves()
	}
	return c
}

// Validate rejects configurations Solve cannot honor.
func (c Config) Validate() error {
	if c.Clusters < 0 {
		return errConfig("clusters must be >= 0")
	}
	if c.Restarts < 0 {
		return errConfig("restarts must be >= 0")
	}
	if c.Workers < 0 {
		return errConfig("workers must be >= 0")
	}
	if c.MaxIterations < 0 {
		return errConfig("maxIterations must be >= 0")
	}
	if c.TimeBudget < 0 {
		return errConfig("timeBudget must be >= 0")
	}
	if c.SpeedMPH < 0 {
		return errConfig("speedMPH must be >= 0")
	}
	return nil
}
