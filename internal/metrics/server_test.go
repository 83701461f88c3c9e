package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
	"github.com/prometheus/client_golang/prometheus"
)

func TestServer_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("worlds", reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Observe("save_world", time.Now(), nil)

	s := NewServer("127.0.0.1:0", reg)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	testutil.AssertEqual(t, "status", rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `worlds_operations_total{op="save_world",result="ok"} 1`) {
		t.Errorf("metrics output missing operation counter:\n%s", rec.Body.String())
	}
}
