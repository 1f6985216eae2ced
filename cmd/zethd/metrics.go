// metrics.go - Metrics and health endpoints for the zeth client daemon
package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HamzaZF/zeth-client/internal/metrics"
)

// newRegistry returns a registry carrying the engine metrics next to the
// Go runtime and process collectors.
func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// newMux serves /metrics, /health and, when proverHandler is set, the
// prover RPC under /prover/.
func newMux(reg *prometheus.Registry, hc *HealthChecker, proverHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := hc.CheckHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if health.OverallStatus == Unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(CreateHealthResponse(health))
	})
	if proverHandler != nil {
		mux.Handle("/prover/", http.StripPrefix("/prover", proverHandler))
	}
	return mux
}
