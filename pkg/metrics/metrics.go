package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "deploytrack"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	subsystemRPC      = "rpc"
	subsystemReceipts = "receipts"
	subsystemSink     = "sink"
)

// Labels holds constant labels applied to all metrics. They distinguish
// metrics from multiple scanner instances watching different chains.
type Labels struct {
	ChainID     uint64 // EVM chain ID being scanned
	Environment string // Deployment environment (e.g., "production", "staging")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.ChainID != 0 {
		labels["chain_id"] = strconv.FormatUint(l.ChainID, 10)
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	return labels
}

type Metrics struct {
	// Scan window state
	lowest           prometheus.Gauge
	highest          prometheus.Gauge
	processedSetSize prometheus.Gauge

	// Processing counters
	blocksProcessed prometheus.Counter
	windowAdvances  prometheus.Counter
	errors          *prometheus.CounterVec

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge

	// Processing latency
	blockProcessingDuration prometheus.Histogram

	// Receipt metrics
	receiptsFetched        *prometheus.CounterVec
	receiptFetchDuration   prometheus.Histogram
	receiptFetchesInFlight prometheus.Gauge

	// Deployment metrics
	deploymentsFound prometheus.Counter
	emptyBlocks      prometheus.Counter

	// Sink metrics
	sinkWrites        *prometheus.CounterVec
	sinkWriteDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance and registers all metrics with the
// provided registerer. For metrics with constant labels, use NewWithLabels.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied
// to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}
	return newMetrics(reg)
}

// rpcBuckets cover typical RPC latencies from 1ms to 10s.
var rpcBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lowest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lowest",
			Help:      "Lowest unprocessed block height (window lower bound)",
		}),
		highest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "highest",
			Help:      "Highest scheduled block height (window upper bound)",
		}),
		processedSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "processed_set_size",
			Help:      "Number of blocks in the in-memory processed set",
		}),
		blocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "blocks_processed_total",
			Help:      "Total number of blocks processed and committed",
		}),
		windowAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "window_advances_total",
			Help:      "Total number of times the window lower bound was advanced",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemRPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemRPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			Buckets:   rpcBuckets,
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemRPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		blockProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "block_processing_duration_seconds",
			Help:      "Time to process a single block end-to-end",
			Buckets:   rpcBuckets,
		}),
		receiptsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemReceipts,
			Name:      "fetched_total",
			Help:      "Total receipt fetches by status",
		}, []string{"status"}),
		receiptFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemReceipts,
			Name:      "fetch_duration_seconds",
			Help:      "Time to fetch all receipts for a block",
			Buckets:   rpcBuckets,
		}),
		receiptFetchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemReceipts,
			Name:      "fetches_in_flight",
			Help:      "Number of receipt fetches currently in progress",
		}),
		deploymentsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deployments_found_total",
			Help:      "Total contract deployments discovered",
		}),
		emptyBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "empty_blocks_total",
			Help:      "Total blocks processed that contained no transactions",
		}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSink,
			Name:      "writes_total",
			Help:      "Total sink write batches by sink and status",
		}, []string{"sink", "status"}),
		sinkWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemSink,
			Name:      "write_duration_seconds",
			Help:      "Sink write batch duration in seconds",
			Buckets:   rpcBuckets,
		}, []string{"sink"}),
	}

	err := errors.Join(
		reg.Register(m.lowest),
		reg.Register(m.highest),
		reg.Register(m.processedSetSize),
		reg.Register(m.blocksProcessed),
		reg.Register(m.windowAdvances),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.blockProcessingDuration),
		reg.Register(m.receiptsFetched),
		reg.Register(m.receiptFetchDuration),
		reg.Register(m.receiptFetchesInFlight),
		reg.Register(m.deploymentsFound),
		reg.Register(m.emptyBlocks),
		reg.Register(m.sinkWrites),
		reg.Register(m.sinkWriteDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for non-RPC errors (RPC errors are tracked via rpcCalls{status="error"}).
const (
	ErrTypeOutOfWindow      = "out_of_window"
	ErrTypeInvalidWatermark = "invalid_watermark"
	ErrTypeBlockNotFound    = "block_not_found"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// CommitBlocks records blocks being committed when the window lower bound advances.
func (m *Metrics) CommitBlocks(count uint64, lowest, highest uint64, processedSetSize int) {
	if m == nil {
		return
	}
	m.windowAdvances.Inc()
	m.blocksProcessed.Add(float64(count))
	m.UpdateWindowMetrics(lowest, highest, processedSetSize)
}

// UpdateWindowMetrics updates scan window state gauges.
func (m *Metrics) UpdateWindowMetrics(lowest, highest uint64, processedSetSize int) {
	if m == nil {
		return
	}
	m.lowest.Set(float64(lowest))
	m.highest.Set(float64(highest))
	m.processedSetSize.Set(float64(processedSetSize))
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// ObserveBlockProcessingDuration records a block processing duration.
func (m *Metrics) ObserveBlockProcessingDuration(seconds float64) {
	if m == nil {
		return
	}
	m.blockProcessingDuration.Observe(seconds)
}

// IncReceiptFetchInFlight increments the in-flight receipt fetch gauge.
func (m *Metrics) IncReceiptFetchInFlight() {
	if m == nil {
		return
	}
	m.receiptFetchesInFlight.Inc()
}

// DecReceiptFetchInFlight decrements the in-flight receipt fetch gauge.
func (m *Metrics) DecReceiptFetchInFlight() {
	if m == nil {
		return
	}
	m.receiptFetchesInFlight.Dec()
}

// RecordReceiptFetch records a receipt fetch outcome with duration.
func (m *Metrics) RecordReceiptFetch(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.receiptsFetched.WithLabelValues(status).Inc()
	m.receiptFetchDuration.Observe(durationSeconds)
}

// AddDeploymentsFound records discovered contract deployments.
func (m *Metrics) AddDeploymentsFound(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.deploymentsFound.Add(float64(count))
}

// IncEmptyBlocks records a block with no transactions.
func (m *Metrics) IncEmptyBlocks() {
	if m == nil {
		return
	}
	m.emptyBlocks.Inc()
}

// RecordSinkWrite records a sink write batch outcome with duration.
func (m *Metrics) RecordSinkWrite(sink string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.sinkWrites.WithLabelValues(sink, status).Inc()
	m.sinkWriteDuration.WithLabelValues(sink).Observe(durationSeconds)
}
