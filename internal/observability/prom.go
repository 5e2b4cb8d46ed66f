package observability

import (
	"net/http"
	"time"

	"marquee/internal/orders/txn"
	"marquee/internal/tasks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prom exposes the same counters as Metrics in Prometheus format. It owns its
// registry so several instances can coexist in one process.
type Prom struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latencyMS   *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	exports     *prometheus.CounterVec
	exported    *prometheus.CounterVec
	tasks       *prometheus.CounterVec
	retried     prometheus.Counter
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests.",
		}, []string{"method", "code"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_ms",
			Help:      "gRPC request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Place-order transactions by the status they entered.",
		}, []string{"status"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_exports_total",
			Help:      "Finished transactions exported to tasks.",
		}, []string{"status"}),
		exported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exported_tasks_total",
			Help:      "Tasks created by transaction exports.",
		}, []string{"status"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task attempts by outcome.",
		}, []string{"task", "outcome"}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_retried_total",
			Help:      "Stalled tasks returned to Ready.",
		}),
	}
	p.registry.MustRegister(p.requests, p.latencyMS, p.transitions, p.exports, p.exported, p.tasks, p.retried)
	return p
}

// ObserveCall records one finished RPC.
func (p *Prom) ObserveCall(method, code string, d time.Duration) {
	p.requests.WithLabelValues(method, code).Inc()
	p.latencyMS.WithLabelValues(method).Observe(float64(d.Milliseconds()))
}

func (p *Prom) RecordTransition(status txn.TransactionStatus, n int64) {
	if n > 0 {
		p.transitions.WithLabelValues(string(status)).Add(float64(n))
	}
}

func (p *Prom) RecordExport(status txn.TransactionStatus, n int) {
	p.exports.WithLabelValues(string(status)).Inc()
	p.exported.WithLabelValues(string(status)).Add(float64(n))
}

func (p *Prom) RecordTask(name txn.TaskName, outcome tasks.Outcome) {
	p.tasks.WithLabelValues(string(name), string(outcome)).Inc()
}

func (p *Prom) RecordRetried(n int64) {
	if n > 0 {
		p.retried.Add(float64(n))
	}
}

func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Recorders fans transaction and task events out to both metric sinks.
type Recorders struct {
	Metrics *Metrics
	Prom    *Prom
}

func (r Recorders) RecordTransition(status txn.TransactionStatus, n int64) {
	r.Metrics.RecordTransition(status, n)
	if r.Prom != nil {
		r.Prom.RecordTransition(status, n)
	}
}

func (r Recorders) RecordExport(status txn.TransactionStatus, n int) {
	r.Metrics.RecordExport(status, n)
	if r.Prom != nil {
		r.Prom.RecordExport(status, n)
	}
}

func (r Recorders) RecordTask(name txn.TaskName, outcome tasks.Outcome) {
	r.Metrics.RecordTask(name, outcome)
	if r.Prom != nil {
		r.Prom.RecordTask(name, outcome)
	}
}

func (r Recorders) RecordRetried(n int64) {
	r.Metrics.RecordRetried(n)
	if r.Prom != nil {
		r.Prom.RecordRetried(n)
	}
}
