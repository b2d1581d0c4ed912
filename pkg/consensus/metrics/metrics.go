// Package metrics exposes a Prometheus /metrics endpoint for a node,
// grounded in the pack's repeated pattern of a sidecar metrics surface
// sitting next to the consensus core (see SPEC_FULL.md's domain stack
// table).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the gauges and counters every consensus instance reports
// into.
type Registry struct {
	QueueDepth     *prometheus.GaugeVec
	SuspectedCount *prometheus.GaugeVec
	EpochCount     *prometheus.GaugeVec
	Decisions      *prometheus.CounterVec
	registry       *prometheus.Registry
}

// NewRegistry builds a fresh, process-local registry -- callers that run
// several nodes in one test binary each get their own, avoiding duplicate
// metric registration panics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "consensus",
			Name:      "dispatcher_queue_depth",
			Help:      "Number of undelivered messages queued for a consensus instance.",
		}, []string{"system_id"}),
		SuspectedCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "consensus",
			Name:      "epfd_suspected_count",
			Help:      "Number of processes currently suspected by the failure detector.",
		}, []string{"system_id"}),
		EpochCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "consensus",
			Name:      "ec_epochs_started",
			Help:      "Number of epochs this node has originated as leader.",
		}, []string{"system_id"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consensus",
			Name:      "uc_decisions_total",
			Help:      "Number of uniform-consensus decisions emitted.",
		}, []string{"system_id"}),
	}
	reg.MustRegister(r.QueueDepth, r.SuspectedCount, r.EpochCount, r.Decisions)
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
