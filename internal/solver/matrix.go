package solver

import (
	"math"
)

// DepotID is the identifier the matrix reserves for the depot row/column.
const DepotID = "@depot"

// Metric computes travel distance in miles from one point to another. It may
// be asymmetric; values are stored as given and never averaged.
type Metric func(from, to LatLng) float64

// Matrix is the distance oracle: pairwise cost (miles) and travel time
// (minutes) for the depot and every known site. It is fully populated by
// BuildMatrix and read-only afterwards, so workers may share it without
// locking.
type Matrix struct {
	ids   []string
	index map[string]int
	cost  [][]float64
	time  [][]float64
}

// BuildMatrix computes the full pairwise matrix once. Index 0 is the depot.
// A nil metric selects great-circle distance in miles.
func BuildMatrix(depot LatLng, sites []Site, speedMPH float64, metric Metric) *Matrix {
	if metric == nil {
		metric = Haversine
	}
	if speedMPH <= 0 {
		speedMPH = defaultSpeedMPH
	}
	n := len(sites) + 1
	pts := make([]LatLng, n)
	ids := make([]string, n)
	index := make(map[string]int, n)
	ids[0], pts[0] = DepotID, depot
	index[DepotID] = 0
	for i, s := range sites {
		ids[i+1] = s.ID
		pts[i+1] = s.Loc
		index[s.ID] = i + 1
	}
	cost := make([][]float64, n)
	tmin := make([][]float64, n)
	for i := 0; i < n; i++ {
		cost[i] = make([]float64, n)
		tmin[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := metric(pts[i], pts[j])
			cost[i][j] = d
			tmin[i][j] = d / speedMPH * 60
		}
	}
	return &Matrix{ids: ids, index: index, cost: cost, time: tmin}
}

// Cost returns travel distance in miles between two known identifiers.
func (m *Matrix) Cost(a, b string) (float64, error) {
	i, ok := m.index[a]
	if !ok {
		return 0, &UnknownSiteError{ID: a}
	}
	j, ok := m.index[b]
	if !ok {
		return 0, &UnknownSiteError{ID: b}
	}
	return m.cost[i][j], nil
}

// Time returns travel time in minutes between two known identifiers.
func (m *Matrix) Time(a, b string) (float64, error) {
	i, ok := m.index[a]
	if !ok {
		return 0, &UnknownSiteError{ID: a}
	}
	j, ok := m.index[b]
	if !ok {
		return 0, &UnknownSiteError{ID: b}
	}
	return m.time[i][j], nil
}

// Size returns the number of entries, depot included.
func (m *Matrix) Size() int { return len(m.ids) }

// costIdx and timeIdx are the hot-path lookups used internally; indices are
// produced by the problem builder and always valid.
func (m *Matrix) costIdx(i, j int) float64 { return m.cost[i][j] }
func (m *Matrix) timeIdx(i, j int) float64 { return m.time[i][j] }

// Haversine is the default metric: great-circle distance in miles.
func Haversine(a, b LatLng) float64 {
	const earthRadiusMiles = 3959.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMiles * 2 * math.Asin(math.Sqrt(h))
}
