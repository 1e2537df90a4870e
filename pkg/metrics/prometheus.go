// Package metrics provides Prometheus metrics for the proofkit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score buckets shared by risk score and confidence histograms (both live in [0,100]).
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Composition
	compositions        *prometheus.CounterVec
	riskScore           prometheus.Histogram
	compositionDuration prometheus.Histogram
	artifactsStored     prometheus.Gauge

	// Cross-document validation
	validations          *prometheus.CounterVec
	validationConfidence prometheus.Histogram
	validationIssues     *prometheus.CounterVec

	// Ledger
	ledgerEvents     *prometheus.CounterVec
	ledgerOutOfOrder prometheus.Counter
	ledgerArtifacts  prometheus.Gauge
	eventsDuplicate  prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "proofkit",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.compositions = auto.NewCounterVec(m.counterOpts("compositions_total",
		"Composition attempts by outcome (composed, ineligible, invalid_item_data)"), []string{"outcome"})
	m.riskScore = auto.NewHistogram(m.histogramOpts("risk_score",
		"Risk score of composed artifacts", scoreBuckets))
	m.compositionDuration = auto.NewHistogram(m.histogramOpts("composition_duration_milliseconds",
		"Time spent composing and validating an artifact", m.histogramBuckets))
	m.artifactsStored = auto.NewGauge(m.gaugeOpts("artifacts_stored",
		"Number of artifacts held by the repository"))

	m.validations = auto.NewCounterVec(m.counterOpts("validations_total",
		"Cross-document validations by verdict (valid, invalid)"), []string{"verdict"})
	m.validationConfidence = auto.NewHistogram(m.histogramOpts("validation_confidence",
		"Confidence of cross-document validation results", scoreBuckets))
	m.validationIssues = auto.NewCounterVec(m.counterOpts("validation_issues_total",
		"Cross-document issues raised by severity"), []string{"severity"})

	m.ledgerEvents = auto.NewCounterVec(m.counterOpts("ledger_events_total",
		"Verification events appended to the ledger by action"), []string{"action"})
	m.ledgerOutOfOrder = auto.NewCounter(m.counterOpts("ledger_out_of_order_total",
		"Verification events rejected for arriving before the last recorded event"))
	m.ledgerArtifacts = auto.NewGauge(m.gaugeOpts("ledger_artifacts",
		"Artifacts with at least one recorded verification event"))
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Verification events dropped as duplicates"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the event queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size / capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Events dequeued"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total",
		"Events refused by the queue by reason"), []string{"reason"})

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of ledger workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time a worker spends recording one event", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Events a worker failed to record"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by endpoint"), []string{"endpoint", "method", "error_type"})
}

// RecordComposition counts a composition attempt with the given outcome.
func RecordComposition(outcome string) {
	globalManager.compositions.WithLabelValues(outcome).Inc()
}

// RecordRiskScore observes the risk score of a composed artifact.
func RecordRiskScore(score int) {
	globalManager.riskScore.Observe(float64(score))
}

// RecordCompositionDuration observes composition latency in milliseconds.
func RecordCompositionDuration(ms float64) {
	globalManager.compositionDuration.Observe(ms)
}

// UpdateArtifactsStored sets the repository size.
func UpdateArtifactsStored(count int) {
	globalManager.artifactsStored.Set(float64(count))
}

// RecordValidation counts one validation result and its issues.
func RecordValidation(valid bool, confidence int, severities []string) {
	verdict := "invalid"
	if valid {
		verdict = "valid"
	}
	globalManager.validations.WithLabelValues(verdict).Inc()
	globalManager.validationConfidence.Observe(float64(confidence))
	for _, s := range severities {
		globalManager.validationIssues.WithLabelValues(s).Inc()
	}
}

// RecordLedgerEvent counts an appended verification event.
func RecordLedgerEvent(action string) {
	globalManager.ledgerEvents.WithLabelValues(action).Inc()
}

// RecordLedgerOutOfOrder counts a rejected out-of-order event.
func RecordLedgerOutOfOrder() {
	globalManager.ledgerOutOfOrder.Inc()
}

// UpdateLedgerArtifacts sets the number of artifacts tracked by the ledger.
func UpdateLedgerArtifacts(count int) {
	globalManager.ledgerArtifacts.Set(float64(count))
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts an event the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
