package solver

import (
	"fmt"
	"testing"
)

func TestMetricsStoreEvictsOldest(t *testing.T) {
	for i := 0; i <= metricsKeep; i++ {
		RecordMetrics(fmt.Sprintf("run_%d", i), Metrics{Restarts: i})
	}
	if _, ok := GetMetrics("run_0"); ok {
		t.Fatalf("oldest run survived past the retention bound")
	}
	m, ok := GetMetrics(fmt.Sprintf("run_%d", metricsKeep))
	if !ok || m.Restarts != metricsKeep {
		t.Fatalf("newest run missing or wrong: %+v ok=%v", m, ok)
	}
	// re-recording an existing id must not evict anything
	RecordMetrics("run_1", Metrics{Restarts: -1})
	if m, ok := GetMetrics("run_1"); !ok || m.Restarts != -1 {
		t.Fatalf("overwrite lost: %+v ok=%v", m, ok)
	}
}
