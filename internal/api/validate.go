package api

import (
	"fmt"

	"fleetroute/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if len(req.Sites) == 0 {
		return fmt.Errorf("sites must not be empty")
	}
	if len(req.Vehicles) == 0 {
		return fmt.Errorf("vehicles must not be empty")
	}
	seen := map[string]struct{}{}
	for i, s := range req.Sites {
		if s.ID == "" {
			return fmt.Errorf("sites[%d]: missing id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("sites[%d]: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Demand < 0 {
			return fmt.Errorf("site %s: demand must be >= 0", s.ID)
		}
		if s.ServiceMin < 0 {
			return fmt.Errorf("site %s: serviceMin must be >= 0", s.ID)
		}
		if tw := s.TimeWindow; tw != nil && tw.LatestMin < tw.EarliestMin {
			return fmt.Errorf("site %s: latestMin before earliestMin", s.ID)
		}
	}
	seen = map[string]struct{}{}
	for i, v := range req.Vehicles {
		if v.ID == "" {
			return fmt.Errorf("vehicles[%d]: missing id", i)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("vehicles[%d]: duplicate id %s", i, v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.Capacity < 0 {
			return fmt.Errorf("vehicle %s: capacity must be >= 0", v.ID)
		}
	}
	cfg := req.Config
	if cfg.Clusters < 0 {
		return fmt.Errorf("clusters must be >= 0")
	}
	if cfg.Restarts < 0 {
		return fmt.Errorf("restarts must be >= 0")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if cfg.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if cfg.SpeedMPH < 0 {
		return fmt.Errorf("speedMph must be >= 0")
	}
	for _, m := range cfg.Moves {
		switch m {
		case "two_opt", "or_opt", "relocate", "swap":
		default:
			return fmt.Errorf("unknown move: %s (allowed: two_opt,or_opt,relocate,swap)", m)
		}
	}
	return nil
}
