package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UptimeCollector reports process uptime at scrape time rather than via a
// gauge NodeState would otherwise have to tick on a timer.
type UptimeCollector struct {
	startedAt time.Time
	desc      *prometheus.Desc
}

// NewUptimeCollector returns a collector measuring uptime since startedAt.
func NewUptimeCollector(startedAt time.Time) *UptimeCollector {
	return &UptimeCollector{
		startedAt: startedAt,
		desc: prometheus.NewDesc(
			namespace+"_uptime_seconds",
			"Seconds elapsed since node start.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *UptimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *UptimeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, time.Since(c.startedAt).Seconds())
}
