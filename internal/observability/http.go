package observability

import (
	"encoding/json"
	"net/http"
)

func Handler(metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
}

// NewMux serves the JSON snapshot at /metrics, Prometheus at /metrics/prom
// and, when alerts is set, the operator alert stream at /alerts.
func NewMux(metrics *Metrics, prom *Prom, alerts http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(metrics))
	if prom != nil {
		mux.Handle("/metrics/prom", prom.Handler())
	}
	if alerts != nil {
		mux.Handle("/alerts", alerts)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
