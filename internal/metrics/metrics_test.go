package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRecord(t *testing.T) {
	before := testutil.ToFloat64(FilesTotal.WithLabelValues("ok"))
	FilesTotal.WithLabelValues("ok").Add(3)
	if got := testutil.ToFloat64(FilesTotal.WithLabelValues("ok")) - before; got != 3 {
		t.Errorf("files_total delta = %v, want 3", got)
	}

	FindingsTotal.WithLabelValues("HIGH").Inc()
	if got := testutil.ToFloat64(FindingsTotal.WithLabelValues("HIGH")); got < 1 {
		t.Errorf("findings_total = %v, want >= 1", got)
	}
}
