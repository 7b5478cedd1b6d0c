// Package metrics exposes Prometheus counters and histograms for the
// analyzer runtime. All metrics are package-level and registered once in
// init, mirroring how other operators in this codebase expect a single
// process-wide registry rather than one scoped to a Runtime instance.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FlowsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowan_flows_started_total",
		Help: "Flows handed to on_new_flow, by analyzer",
	}, []string{"analyzer"})

	FlowsTerminated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowan_flows_terminated_total",
		Help: "Flows that reached on_flow_terminate, by analyzer",
	}, []string{"analyzer"})

	PacketsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowan_packets_total",
		Help: "Packets dispatched to on_layer4 across all analyzers",
	})

	Anomalies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowan_anomalies_total",
		Help: "Anomaly flags raised, by analyzer and tag",
	}, []string{"analyzer", "tag"})

	FlowDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowan_flow_duration_seconds",
		Help:    "Wall-clock time between a flow's first and last observed packet",
		Buckets: prometheus.DefBuckets,
	})

	AnalyzerInitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowan_analyzer_init_errors_total",
		Help: "Analyzer Init() failures, by analyzer",
	}, []string{"analyzer"})
)

func init() {
	prometheus.MustRegister(
		FlowsStarted,
		FlowsTerminated,
		PacketsSeen,
		Anomalies,
		FlowDuration,
		AnalyzerInitErrors,
	)
}

// Serve starts a dedicated /metrics HTTP server in the background. Safe to
// call at most once per addr; callers that already expose Prometheus on an
// existing mux should register promhttp.Handler() there instead.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}

// ObserveFlowDuration records the lifetime of a terminated flow given its
// first and last packet timestamps.
func ObserveFlowDuration(first, last time.Time) {
	if first.IsZero() || last.IsZero() || !last.After(first) {
		return
	}
	FlowDuration.Observe(last.Sub(first).Seconds())
}
