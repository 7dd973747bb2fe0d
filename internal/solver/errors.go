package solver

import (
	"errors"
	"fmt"
)

// ErrNoSites is returned when Solve is called with an empty site list.
var ErrNoSites = errors.New("no sites to solve")

// ErrNoVehicles is returned when Solve is called with an empty fleet.
var ErrNoVehicles = errors.New("no vehicles available")

// UnknownSiteError reports a distance/time lookup for an identifier the
// matrix was not built with. This is a programming error, not recoverable.
type UnknownSiteError struct {
	ID string
}

func (e *UnknownSiteError) Error() string {
	return fmt.Sprintf("unknown site %q", e.ID)
}

// UnserviceableSiteError reports a site whose demand exceeds every vehicle's
// capacity. No fleet assignment can serve it.
type UnserviceableSiteError struct {
	ID          string
	Demand      float64
	MaxCapacity float64
}

func (e *UnserviceableSiteError) Error() string {
	return fmt.Sprintf("site %q demand %.2f exceeds largest vehicle capacity %.2f", e.ID, e.Demand, e.MaxCapacity)
}

type configError string

func (e configError) Error() string { return "solver config: " + string(e) }

func errConfig(msg string) error { return configError(msg) }
