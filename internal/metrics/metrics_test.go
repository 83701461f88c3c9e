package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	m, err := New("worlds", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Observe("save_world", time.Now(), nil)
	m.Observe("save_world", time.Now(), nil)
	m.Observe("load_colony", time.Now(), errors.New("boom"))
	m.ArtifactWritten("map")
	m.SetLoadedMaps(3)
	m.SetColonies(2)

	testutil.AssertEqual(t, "save ok", promtest.ToFloat64(m.operations.WithLabelValues("save_world", "ok")), 2.0)
	testutil.AssertEqual(t, "load error", promtest.ToFloat64(m.operations.WithLabelValues("load_colony", "error")), 1.0)
	testutil.AssertEqual(t, "artifacts", promtest.ToFloat64(m.artifacts.WithLabelValues("map")), 1.0)
	testutil.AssertEqual(t, "loaded maps", promtest.ToFloat64(m.loadedMaps), 3.0)
	testutil.AssertEqual(t, "colonies", promtest.ToFloat64(m.colonies), 2.0)
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("worlds", reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New("worlds", reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.Observe("save_world", time.Now(), nil)
	m.ArtifactWritten("world")
	m.SetLoadedMaps(1)
	m.SetColonies(1)
}
