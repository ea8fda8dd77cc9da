package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	if got := Outcome(nil); got != OutcomeSuccess {
		t.Errorf("Outcome(nil) = %q", got)
	}
	if got := Outcome(errors.New("boom")); got != OutcomeError {
		t.Errorf("Outcome(err) = %q", got)
	}
}

func TestStoreOperationsLabels(t *testing.T) {
	before := testutil.ToFloat64(StoreOperations.WithLabelValues("list", OutcomeSuccess))
	StoreOperations.WithLabelValues("list", Outcome(nil)).Inc()
	if got := testutil.ToFloat64(StoreOperations.WithLabelValues("list", OutcomeSuccess)); got != before+1 {
		t.Errorf("store_operations_total{op=list,outcome=success} = %v, want %v", got, before+1)
	}
}

func TestCollectorsLint(t *testing.T) {
	PDFExports.Inc()
	GenerationDuration.Observe(1.5)
	collectors := map[string]prometheus.Collector{
		"generation_requests_total":   GenerationRequests,
		"generation_duration_seconds": GenerationDuration,
		"store_operations_total":      StoreOperations,
		"pdf_exports_total":           PDFExports,
	}
	for name, c := range collectors {
		problems, err := testutil.CollectAndLint(c)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		for _, p := range problems {
			t.Errorf("%s: %s: %s", name, p.Metric, p.Text)
		}
	}
}
