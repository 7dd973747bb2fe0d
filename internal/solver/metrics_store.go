package solver

import "sync"

// metricsKeep bounds the per-run metrics kept in memory; the oldest runs
// are evicted first.
const metricsKeep = 1024

var (
	mu      sync.Mutex
	byRunID = map[string]Metrics{}
	order   []string
)

// RecordMetrics stores the metrics of a finished solve keyed by run id.
func RecordMetrics(runID string, m Metrics) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := byRunID[runID]; !ok {
		order = append(order, runID)
		for len(order) > metricsKeep {
			delete(byRunID, order[0])
			order = order[1:]
		}
	}
	byRunID[runID] = m
}

// GetMetrics returns the recorded metrics for a run, if any.
func GetMetrics(runID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := byRunID[runID]
	return m, ok
}
