// Package metric provides the node's Prometheus metrics registry.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bucket ladders for the predefined histograms. Labels are specified by the
// observability interface; numeric boundaries are an implementation choice.
var (
	// GossipRTTBucketsMS covers gossip ping/ack round trips, in milliseconds.
	GossipRTTBucketsMS = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// DatastoreOpBucketsUS covers datastore operation duration, in microseconds.
	DatastoreOpBucketsUS = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
)

const namespace = "meridian"

// Registry holds every metric NodeState updates over its lifetime.
type Registry struct {
	reg *prometheus.Registry

	RecordsTotal  prometheus.Gauge
	BytesTotal    prometheus.Gauge
	SetTotal      prometheus.Counter
	GetTotal      prometheus.Counter
	UnsetTotal    prometheus.Counter
	MergeTotal    prometheus.Counter

	MembersByStatus *prometheus.GaugeVec

	GossipRTT prometheus.Histogram

	DatastoreOpDuration *prometheus.HistogramVec

	RaftTerm        prometheus.Gauge
	RaftCommitIndex prometheus.Gauge
	RaftIsLeader    prometheus.Gauge
}

// NewRegistry builds a fresh registry with every metric pre-registered.
// A fresh *prometheus.Registry (not the global DefaultRegisterer) is used
// so multiple nodes can run in the same test process without collisions.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		RecordsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datastore_records",
			Help:      "Current number of live (non-tombstoned) records.",
		}),
		BytesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datastore_bytes",
			Help:      "Total bytes occupied by stored values.",
		}),
		SetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datastore_set_total",
			Help:      "Total SET operations applied.",
		}),
		GetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datastore_get_total",
			Help:      "Total GET operations served.",
		}),
		UnsetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datastore_unset_total",
			Help:      "Total UNSET operations applied.",
		}),
		MergeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datastore_merge_total",
			Help:      "Total gossip merge_record calls, including rejected merges.",
		}),
		MembersByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_members",
			Help:      "Current cluster member count by status.",
		}, []string{"status"}),
		GossipRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gossip_rtt_ms",
			Help:      "Gossip ping/ack round-trip time in milliseconds.",
			Buckets:   GossipRTTBucketsMS,
		}),
		DatastoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "datastore_op_duration_us",
			Help:      "Datastore operation duration in microseconds.",
			Buckets:   DatastoreOpBucketsUS,
		}, []string{"op"}),
		RaftTerm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raft_term",
			Help:      "Current Raft term observed by this node.",
		}),
		RaftCommitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raft_commit_index",
			Help:      "Current Raft commit index observed by this node.",
		}),
		RaftIsLeader: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raft_is_leader",
			Help:      "1 if this node is the current Raft leader, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		r.RecordsTotal, r.BytesTotal, r.SetTotal, r.GetTotal, r.UnsetTotal, r.MergeTotal,
		r.MembersByStatus, r.GossipRTT, r.DatastoreOpDuration,
		r.RaftTerm, r.RaftCommitIndex, r.RaftIsLeader,
	)

	return r
}

// Register attaches an additional prometheus.Collector, such as the uptime
// collector, to this registry.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.reg.Register(c)
}

// Handler returns the http.Handler serving this registry's metrics in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
