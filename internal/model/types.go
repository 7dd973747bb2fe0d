package model

// API types for the solve service.

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow bounds a visit, in minutes from the start of the planning day.
type TimeWindow struct {
	EarliestMin float64 `json:"earliestMin"`
	LatestMin   float64 `json:"latestMin"`
}

type SiteIn struct {
	ID         string      `json:"id"`
	Location   LatLng      `json:"location"`
	Demand     float64     `json:"demand,omitempty"`
	TimeWindow *TimeWindow `json:"timeWindow,omitempty"`
	ServiceMin float64     `json:"serviceMin,omitempty"`
}

type VehicleIn struct {
	ID       string      `json:"id"`
	Capacity float64     `json:"capacity,omitempty"`
	Depot    *LatLng     `json:"depot,omitempty"`
	Hours    *TimeWindow `json:"hours,omitempty"`
}

// SolverConfig is the enumerated option set recognized by the engine.
type SolverConfig struct {
	Clusters      int      `json:"clusters,omitempty"` // 0 = auto
	Seed          int64    `json:"seed,omitempty"`
	Restarts      int      `json:"restarts,omitempty"`
	Workers       int      `json:"workers,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty"`
	TimeBudgetMs  int      `json:"timeBudgetMs,omitempty"`
	SpeedMPH      float64  `json:"speedMph,omitempty"`
	Moves         []string `json:"moves,omitempty"` // two_opt, or_opt, relocate, swap
}

type SolveRequest struct {
	Sites    []SiteIn     `json:"sites"`
	Vehicles []VehicleIn  `json:"vehicles"`
	Config   SolverConfig `json:"config"`
	Async    bool         `json:"async,omitempty"`
}

type StopOut struct {
	SiteID    string  `json:"siteId"`
	ArriveMin float64 `json:"arriveMin"`
	WaitMin   float64 `json:"waitMin"`
	DepartMin float64 `json:"departMin"`
	Load      float64 `json:"load"`
}

type RouteOut struct {
	VehicleID    string    `json:"vehicleId"`
	Stops        []StopOut `json:"stops"`
	CostMiles    float64   `json:"costMiles"`
	DriveMin     float64   `json:"driveMin"`
	Feasible     bool      `json:"feasible"`
	LateMin      float64   `json:"lateMin,omitempty"`
	OverCapacity float64   `json:"overCapacity,omitempty"`
}

type SolutionOut struct {
	Routes   []RouteOut `json:"routes"`
	Cost     float64    `json:"cost"`
	Feasible bool       `json:"feasible"`
}

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one solve invocation tracked by the store.
type Run struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenantId"`
	Status     string       `json:"status"`
	Sites      int          `json:"sites"`
	Vehicles   int          `json:"vehicles"`
	Seed       int64        `json:"seed"`
	Error      string       `json:"error,omitempty"`
	Solution   *SolutionOut `json:"solution,omitempty"`
	CreatedAt  string       `json:"createdAt"`
	FinishedAt string       `json:"finishedAt,omitempty"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
