// Package metrics provides Prometheus instrumentation for the API
// server and a standalone scrape endpoint.
//
// The package deliberately avoids a global registry: callers create a
// registry with NewRegistry, hand it to the subsystems that record
// metrics, and expose it with Handler. This keeps tests isolated and
// makes the wiring explicit in the serve command.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry pre-populated with the standard Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler that serves the scrape endpoint for
// the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
