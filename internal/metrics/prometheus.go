package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptorpc"

// Prometheus records observations into a private registry.
type Prometheus struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	payments *prometheus.CounterVec
}

// NewPrometheus creates a Prometheus recorder with its own registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Node round trips by currency and method",
		}, []string{"currency", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Failed node round trips by currency and method",
		}, []string{"currency", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Node round trip latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"currency", "method"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Batch payments by outcome",
		}, []string{"currency", "outcome"}),
	}
	p.registry.MustRegister(p.calls, p.errors, p.latency, p.payments)
	return p
}

// ObserveRPC implements Recorder.
func (p *Prometheus) ObserveRPC(currency, method string, d time.Duration, err error) {
	labels := prometheus.Labels{"currency": currency, "method": method}
	p.calls.With(labels).Inc()
	p.latency.With(labels).Observe(d.Seconds())
	if err != nil {
		p.errors.With(labels).Inc()
	}
}

// ObservePayment implements Recorder.
func (p *Prometheus) ObservePayment(currency string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	p.payments.With(prometheus.Labels{"currency": currency, "outcome": outcome}).Inc()
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Recorder = (*Prometheus)(nil)
