package solver

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func testProblem(t *testing.T, sites []Site, vehicles []Vehicle) *Problem {
	t.Helper()
	p, err := NewProblem(sites, vehicles, 50, nil)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

func gridSites(n int, demand float64) []Site {
	sites := make([]Site, n)
	for i := range sites {
		sites[i] = Site{
			ID:     string(rune('a' + i)),
			Loc:    LatLng{Lat: 40 + float64(i%5)*0.1, Lng: -75 + float64(i/5)*0.1},
			Demand: demand,
		}
	}
	return sites
}

func TestClusterPartitionInvariant(t *testing.T) {
	sites := gridSites(12, 2)
	p := testProblem(t, sites, []Vehicle{{ID: "v1", Capacity: 10}, {ID: "v2", Capacity: 10}})
	groups, _, err := p.clusterSites(0, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	seen := map[int]int{}
	for _, g := range groups {
		if len(g) == 0 {
			t.Fatalf("empty cluster returned")
		}
		for _, i := range g {
			seen[i]++
		}
	}
	if len(seen) != len(sites) {
		t.Fatalf("partition covers %d of %d sites", len(seen), len(sites))
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("site %d assigned %d times", i, c)
		}
	}
}

func TestClusterCapacityRespected(t *testing.T) {
	sites := gridSites(10, 3)
	p := testProblem(t, sites, []Vehicle{{ID: "v1", Capacity: 9}})
	// total demand 30, capacity 9 -> auto K = 4
	groups, _, err := p.clusterSites(0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(groups) < 4 {
		t.Fatalf("auto K too small: %d clusters", len(groups))
	}
	for gi, g := range groups {
		load := 0.0
		for _, i := range g {
			load += sites[i].Demand
		}
		if load > 9+1e-9 {
			t.Fatalf("cluster %d overloaded: %f", gi, load)
		}
	}
}

func TestClusterDeterministic(t *testing.T) {
	sites := gridSites(15, 1)
	vehicles := []Vehicle{{ID: "v1", Capacity: 6}}
	a, av, err := testProblem(t, sites, vehicles).clusterSites(3, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	b, bv, err := testProblem(t, sites, vehicles).clusterSites(3, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different partitions:\n%v\n%v", a, b)
	}
	if !reflect.DeepEqual(av, bv) {
		t.Fatalf("same seed produced different vehicle pairings:\n%v\n%v", av, bv)
	}
}

func TestClusterKExceedsSites(t *testing.T) {
	sites := gridSites(3, 1)
	p := testProblem(t, sites, []Vehicle{{ID: "v1", Capacity: 100}})
	groups, _, err := p.clusterSites(10, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(groups) > 3 {
		t.Fatalf("K not reduced: %d clusters for 3 sites", len(groups))
	}
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 3 {
		t.Fatalf("partition lost sites: %d", total)
	}
}

func TestClusterMatchesVehiclesBySize(t *testing.T) {
	sites := gridSites(4, 0)
	sites[0].Demand = 4
	sites[1].Demand = 3
	sites[2].Demand = 3
	sites[3].Demand = 3
	p := testProblem(t, sites, []Vehicle{{ID: "small", Capacity: 2}, {ID: "big", Capacity: 20}})
	groups, vis, err := p.clusterSites(0, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(groups) != len(vis) {
		t.Fatalf("%d groups but %d vehicle pairings", len(groups), len(vis))
	}
	for gi, g := range groups {
		load := 0.0
		for _, i := range g {
			load += sites[i].Demand
		}
		cap := p.vehicles[vis[gi]].Capacity
		if load > cap+1e-9 {
			t.Fatalf("group %d load %f assigned to %q (capacity %f)", gi, load, p.vehicles[vis[gi]].ID, cap)
		}
	}
	// total demand 13 fits only the 20-capacity vehicle
	heaviest, best := -1, 0.0
	for gi, g := range groups {
		load := 0.0
		for _, i := range g {
			load += sites[i].Demand
		}
		if load > best {
			heaviest, best = gi, load
		}
	}
	if id := p.vehicles[vis[heaviest]].ID; id != "big" {
		t.Fatalf("heaviest group paired with %q, want big", id)
	}
}

func TestClusterUnserviceableSite(t *testing.T) {
	sites := gridSites(4, 1)
	sites[2].Demand = 50
	p := testProblem(t, sites, []Vehicle{{ID: "v1", Capacity: 10}, {ID: "v2", Capacity: 20}})
	_, _, err := p.clusterSites(0, rand.New(rand.NewSource(1)))
	var ue *UnserviceableSiteError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnserviceableSiteError, got %v", err)
	}
	if ue.ID != sites[2].ID {
		t.Fatalf("error names site %q, want %q", ue.ID, sites[2].ID)
	}
}

func TestAutoKZeroDemandFallback(t *testing.T) {
	// 50 zero-demand sites: sqrt(50/2) = 5
	if k := autoK(50, 0, 10); k != 5 {
		t.Fatalf("autoK: got %d want 5", k)
	}
	// clamp low and high
	if k := autoK(2, 0, 10); k != 2 {
		t.Fatalf("autoK low clamp: got %d", k)
	}
	if k := autoK(10000, 0, 10); k != 10 {
		t.Fatalf("autoK high clamp: got %d", k)
	}
	// demand-driven
	if k := autoK(10, 33, 10); k != 4 {
		t.Fatalf("autoK demand: got %d want 4", k)
	}
}
