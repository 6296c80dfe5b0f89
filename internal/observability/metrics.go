package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/afcctl/internal/dispatch"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afcctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests on the status surface.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "afcctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	dispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afcctl",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Control requests dispatched, by command and outcome.",
		},
		[]string{"node", "command", "success"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "afcctl",
			Subsystem: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Control request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "command", "success"},
	)
	malformedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afcctl",
			Subsystem: "dispatch",
			Name:      "malformed_packets_total",
			Help:      "Datagrams that failed to decode.",
		},
		[]string{"node"},
	)
	vendorActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afcctl",
			Subsystem: "vendor",
			Name:      "actions_total",
			Help:      "Vendor actions invoked, by kind and outcome.",
		},
		[]string{"node", "action", "success"},
	)
	vendorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "afcctl",
			Subsystem: "vendor",
			Name:      "action_duration_seconds",
			Help:      "Vendor action duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "action", "success"},
	)
	configGeneration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "afcctl",
			Subsystem: "afcd",
			Name:      "config_generation",
			Help:      "Generation of the last committed configuration.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			dispatchRequests, dispatchDuration, malformedPackets,
			vendorActions, vendorDuration,
			configGeneration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDispatch(node, command string, success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	dispatchRequests.WithLabelValues(node, command, successLabel).Inc()
	dispatchDuration.WithLabelValues(node, command, successLabel).Observe(duration.Seconds())
}

func RecordMalformedPacket(node string) {
	RegisterMetrics()
	malformedPackets.WithLabelValues(node).Inc()
}

func RecordVendorAction(node, action string, success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	vendorActions.WithLabelValues(node, action, successLabel).Inc()
	vendorDuration.WithLabelValues(node, action, successLabel).Observe(duration.Seconds())
}

func RecordConfigGeneration(node string, generation uint64) {
	RegisterMetrics()
	configGeneration.WithLabelValues(node).Set(float64(generation))
}

// DispatchObserver feeds dispatch outcomes into the dispatch metrics.
type DispatchObserver struct {
	Node string
}

func (o DispatchObserver) ObserveDispatch(command string, ok bool, d time.Duration) {
	RecordDispatch(o.Node, command, ok, d)
	if command == dispatch.DecodeErrorName {
		RecordMalformedPacket(o.Node)
	}
}
