package solver

import (
	"math"
	"math/rand"
	"sort"
)

const clusterMaxIters = 50

// clusterSites partitions all site indices into at most k demand-capped,
// geometrically compact groups using a constrained k-means variant:
// k-means++ seeding from rng, capacity-capped nearest-centroid assignment
// with deterministic tie-breaks, demand-weighted centroid updates, and a
// greedy repair pass so the partition always covers every site exactly once.
// Empty clusters are dropped. The second return value holds the vehicle index
// serving each group: groups are matched to vehicles by size, heaviest demand
// to largest capacity, and each group's cap during assignment comes from the
// capacity ordering rather than fleet declaration order.
func (p *Problem) clusterSites(k int, rng *rand.Rand) ([][]int, []int, error) {
	n := len(p.sites)
	maxCap := 0.0
	for _, v := range p.vehicles {
		if v.Capacity > maxCap {
			maxCap = v.Capacity
		}
	}
	totalDemand := 0.0
	for _, s := range p.sites {
		if maxCap > 0 && s.Demand > maxCap {
			return nil, nil, &UnserviceableSiteError{ID: s.ID, Demand: s.Demand, MaxCapacity: maxCap}
		}
		totalDemand += s.Demand
	}
	if k <= 0 {
		k = autoK(n, totalDemand, maxCap)
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	centroids := p.seedCentroids(k, rng)
	byCap := p.vehiclesByCapacity()
	caps := make([]float64, k)
	for c := range caps {
		caps[c] = p.vehicles[byCap[c%len(byCap)]].Capacity
	}

	// processing order: heaviest demand first, ties by site id
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := p.sites[order[a]], p.sites[order[b]]
		if sa.Demand != sb.Demand {
			return sa.Demand > sb.Demand
		}
		return sa.ID < sb.ID
	})

	assign := make([]int, n)
	for iter := 0; iter < clusterMaxIters; iter++ {
		loads := make([]float64, k)
		next := make([]int, n)
		var overflow []int
		for _, i := range order {
			c := p.pickCluster(i, centroids, caps, loads)
			if c < 0 {
				overflow = append(overflow, i)
				next[i] = -1
				continue
			}
			next[i] = c
			loads[c] += p.sites[i].Demand
		}
		// greedy repair: overflow sites go to the least-loaded cluster,
		// preferring ones that still fit, so the partition always holds
		for _, i := range overflow {
			next[i] = leastLoaded(loads, caps, p.sites[i].Demand)
			loads[next[i]] += p.sites[i].Demand
		}
		stable := iter > 0 && equalAssign(assign, next)
		copy(assign, next)
		if stable {
			break
		}
		centroids = p.updateCentroids(k, assign, centroids)
	}

	groups := make([][]int, k)
	for i := 0; i < n; i++ {
		c := assign[i]
		groups[c] = append(groups[c], i)
	}
	// drop empty clusters, reducing K
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			sort.Ints(g)
			out = append(out, g)
		}
	}
	return out, p.matchVehicles(out, byCap), nil
}

// vehiclesByCapacity returns vehicle indices ordered by capacity descending,
// ties by fleet declaration order.
func (p *Problem) vehiclesByCapacity() []int {
	idx := make([]int, len(p.vehicles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p.vehicles[idx[a]].Capacity > p.vehicles[idx[b]].Capacity
	})
	return idx
}

// matchVehicles pairs each group with a vehicle, heaviest group demand to
// largest capacity; when groups outnumber vehicles the capacity ordering
// wraps around. Called after empty clusters are dropped so the pairing
// tracks the final group indices.
func (p *Problem) matchVehicles(groups [][]int, byCap []int) []int {
	demand := make([]float64, len(groups))
	for gi, g := range groups {
		for _, i := range g {
			demand[gi] += p.sites[i].Demand
		}
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return demand[order[a]] > demand[order[b]]
	})
	vis := make([]int, len(groups))
	for rank, gi := range order {
		vis[gi] = byCap[rank%len(byCap)]
	}
	return vis
}

// autoK derives the cluster count from aggregate demand over the largest
// capacity, falling back to the sqrt heuristic when demand carries no signal.
func autoK(n int, totalDemand, maxCap float64) int {
	if totalDemand > 0 && maxCap > 0 {
		return int(math.Ceil(totalDemand / maxCap))
	}
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k < 2 {
		k = 2
	}
	if k > 10 {
		k = 10
	}
	return k
}

// seedCentroids runs k-means++ seeding over site coordinates.
func (p *Problem) seedCentroids(k int, rng *rand.Rand) []LatLng {
	n := len(p.sites)
	centroids := make([]LatLng, 0, k)
	centroids = append(centroids, p.sites[rng.Intn(n)].Loc)
	d2 := make([]float64, n)
	for len(centroids) < k {
		sum := 0.0
		for i, s := range p.sites {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := Haversine(c, s.Loc); d < best {
					best = d
				}
			}
			d2[i] = best * best
			sum += d2[i]
		}
		if sum == 0 {
			// all remaining sites coincide with a centroid
			centroids = append(centroids, p.sites[rng.Intn(n)].Loc)
			continue
		}
		r := rng.Float64() * sum
		acc := 0.0
		pick := n - 1
		for i := range d2 {
			acc += d2[i]
			if r <= acc {
				pick = i
				break
			}
		}
		centroids = append(centroids, p.sites[pick].Loc)
	}
	return centroids
}

// pickCluster returns the nearest centroid with remaining capacity, ties
// broken by distance then lowest cluster index; -1 when none fits.
func (p *Problem) pickCluster(i int, centroids []LatLng, caps, loads []float64) int {
	best := -1
	bestDist := math.MaxFloat64
	for c, ctr := range centroids {
		if caps[c] > 0 && loads[c]+p.sites[i].Demand > caps[c] {
			continue
		}
		if d := Haversine(ctr, p.sites[i].Loc); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// leastLoaded prefers the least-filled cluster that still fits demand and
// falls back to the least-filled overall when none does.
func leastLoaded(loads, caps []float64, demand float64) int {
	pick := -1
	for c := range loads {
		if caps[c] > 0 && loads[c]+demand > caps[c] {
			continue
		}
		if pick < 0 || fill(loads[c], caps[c]) < fill(loads[pick], caps[pick]) {
			pick = c
		}
	}
	if pick >= 0 {
		return pick
	}
	for c := range loads {
		if pick < 0 || fill(loads[c], caps[c]) < fill(loads[pick], caps[pick]) {
			pick = c
		}
	}
	return pick
}

func fill(load, cap float64) float64 {
	if cap <= 0 {
		return load
	}
	return load / cap
}

// updateCentroids recomputes demand-weighted means; unit weight when a
// cluster's demand sums to zero. Empty clusters keep their centroid.
func (p *Problem) updateCentroids(k int, assign []int, prev []LatLng) []LatLng {
	lat := make([]float64, k)
	lng := make([]float64, k)
	w := make([]float64, k)
	cnt := make([]int, k)
	for i, c := range assign {
		s := p.sites[i]
		wt := s.Demand
		if wt <= 0 {
			wt = 1
		}
		lat[c] += s.Loc.Lat * wt
		lng[c] += s.Loc.Lng * wt
		w[c] += wt
		cnt[c]++
	}
	out := make([]LatLng, k)
	for c := 0; c < k; c++ {
		if cnt[c] == 0 || w[c] == 0 {
			out[c] = prev[c]
			continue
		}
		out[c] = LatLng{Lat: lat[c] / w[c], Lng: lng[c] / w[c]}
	}
	return out
}

func equalAssign(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
