package api

import (
    "time"

    "fleetroute/internal/model"
    "fleetroute/internal/solver"
)

func toSolverSites(in []model.SiteIn) []solver.Site {
    out := make([]solver.Site, len(in))
    for i, s := range in {
        site := solver.Site{
            ID:         s.ID,
            Loc:        solver.LatLng{Lat: s.Location.Lat, Lng: s.Location.Lng},
            Demand:     s.Demand,
            ServiceMin: s.ServiceMin,
        }
        if s.TimeWindow != nil {
            site.Window = &solver.TimeWindow{EarliestMin: s.TimeWindow.EarliestMin, LatestMin: s.TimeWindow.LatestMin}
        }
        out[i] = site
    }
    return out
}

func toSolverVehicles(in []model.VehicleIn) []solver.Vehicle {
    out := make([]solver.Vehicle, len(in))
    for i, v := range in {
        veh := solver.Vehicle{ID: v.ID, Capacity: v.Capacity}
        if v.Depot != nil {
            veh.Depot = &solver.LatLng{Lat: v.Depot.Lat, Lng: v.Depot.Lng}
        }
        if v.Hours != nil {
            veh.Hours = &solver.TimeWindow{EarliestMin: v.Hours.EarliestMin, LatestMin: v.Hours.LatestMin}
        }
        out[i] = veh
    }
    return out
}

func toSolverConfig(c model.SolverConfig) solver.Config {
    cfg := solver.Config{
        Clusters:      c.Clusters,
        Seed:          c.Seed,
        Restarts:      c.Restarts,
        Workers:       c.Workers,
        MaxIterations: c.MaxIterations,
        SpeedMPH:      c.SpeedMPH,
    }
    if c.TimeBudgetMs > 0 {
        cfg.TimeBudget = time.Duration(c.TimeBudgetMs) * time.Millisecond
    }
    if len(c.Moves) > 0 {
        var ms solver.MoveSet
        for _, m := range c.Moves {
            switch m {
            case "two_opt":
                ms.TwoOpt = true
            case "or_opt":
                ms.OrOpt = true
            case "relocate":
                ms.Relocate = true
            case "swap":
                ms.Swap = true
            }
        }
        cfg.Moves = ms
    }
    return cfg
}

func toSolutionOut(sol *solver.Solution) *model.SolutionOut {
    if sol == nil {
        return nil
    }
    out := &model.SolutionOut{Cost: sol.Cost, Feasible: sol.Feasible}
    out.Routes = make([]model.RouteOut, len(sol.Routes))
    for i, rt := range sol.Routes {
        ro := model.RouteOut{
            VehicleID:    rt.VehicleID,
            CostMiles:    rt.CostMiles,
            DriveMin:     rt.DriveMin,
            Feasible:     rt.Feasible,
            LateMin:      rt.LateMin,
            OverCapacity: rt.OverCapacity,
        }
        ro.Stops = make([]model.StopOut, len(rt.Stops))
        for j, st := range rt.Stops {
            ro.Stops[j] = model.StopOut{
                SiteID:    st.SiteID,
                ArriveMin: st.ArriveMin,
                WaitMin:   st.WaitMin,
                DepartMin: st.DepartMin,
                Load:      st.Load,
            }
        }
        out.Routes[i] = ro
    }
    return out
}
