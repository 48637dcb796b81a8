package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/projects/7c2b9a", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() != "bimhub_http_requests_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] != "/projects/{id}" {
				t.Errorf("route label = %q, want the chi pattern", labels["route"])
			}
			if labels["status"] != "200" {
				t.Errorf("status label = %q, want 200", labels["status"])
			}
			found = true
		}
	}
	if !found {
		t.Fatal("request counter was not recorded")
	}
}

func TestMiddlewareNilReceiverPassesThrough(t *testing.T) {
	var m *HTTPMetrics

	var called bool
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatal("nil metrics must not block the handler chain")
	}
}
