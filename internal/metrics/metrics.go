// Package metrics provides Prometheus instrumentation for evmprobe.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry

	// Node metrics
	rpcCallsTotal *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec

	// Engine metrics
	txSubmitTotal  *prometheus.CounterVec
	probeTotal     *prometheus.CounterVec
	receiptWaitSec *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
)

// Init initializes the metrics system. Calling it again replaces the
// registry, which keeps tests independent.
func Init(enabledFlag bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enabledFlag
	if !enabled {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	rpcCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmprobe_rpc_calls_total",
			Help: "Total number of JSON-RPC calls to the node",
		},
		[]string{"method", "status"},
	)

	rpcDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmprobe_rpc_duration_seconds",
			Help:    "JSON-RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	txSubmitTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmprobe_tx_submit_total",
			Help: "Total number of transaction submissions",
		},
		[]string{"status"},
	)

	probeTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmprobe_probe_total",
			Help: "Total number of capability probes by final outcome",
		},
		[]string{"capability", "outcome"},
	)

	receiptWaitSec = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmprobe_receipt_wait_seconds",
			Help:    "Time spent waiting for transaction receipts",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// RPCCall records one JSON-RPC round-trip.
func RPCCall(method, status string, d time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	rpcCallsTotal.WithLabelValues(method, status).Inc()
	rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// TxSubmit records a pipeline submission.
func TxSubmit(status string) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	txSubmitTotal.WithLabelValues(status).Inc()
}

// Probe records the final outcome of a capability probe.
func Probe(capability, outcome string) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	probeTotal.WithLabelValues(capability, outcome).Inc()
}

// ReceiptWait records how long a receipt wait took and how it ended.
func ReceiptWait(result string, d time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return
	}
	receiptWaitSec.WithLabelValues(result).Observe(d.Seconds())
}
