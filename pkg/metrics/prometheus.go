// Package metrics provides Prometheus metrics for the rep analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Frame Metrics - Per-frame ingest health
	framesProcessed prometheus.Counter
	framesGated     prometheus.Counter
	jointsOccluded  prometheus.Counter
	jointsDropped   prometheus.Counter

	// Rep Metrics - Segmentation and scoring outcomes
	repsCompleted prometheus.Counter
	repsRejected  prometheus.Counter
	repScore      prometheus.Histogram
	repDuration   prometheus.Histogram

	// Coaching Metrics
	cuesFired      prometheus.Counter
	faultsDetected prometheus.Counter

	// Config Quality Metrics
	predicatePanics prometheus.Counter

	// Sink Queue Metrics - Event delivery performance
	sinkQueueSize        prometheus.Gauge
	sinkQueueCapacity    prometheus.Gauge
	sinkQueueUtilization prometheus.Gauge
	sinkEnqueues         prometheus.Counter
	sinkDequeues         prometheus.Counter
	sinkDropped          prometheus.Counter

	// Session Metrics
	activeSessions prometheus.Gauge
	historyReps    prometheus.Gauge

	// Error Metrics - Detailed error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "repkit",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Frame Metrics - Ingest health indicators
	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of pose frames processed",
	})

	m.framesGated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_gated_total",
		Help:      "Total number of frames withheld by the confidence gate",
	})

	m.jointsOccluded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "joints_occluded_total",
		Help:      "Total number of joint samples carried through an occlusion hold",
	})

	m.jointsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "joints_dropped_total",
		Help:      "Total number of joints dropped after exhausting the occlusion hold",
	})

	// Rep Metrics - Segmentation and scoring outcomes
	m.repsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reps_completed_total",
		Help:      "Total number of reps completed and scored",
	})

	m.repsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reps_rejected_total",
		Help:      "Total number of reps rejected by validity rules",
	})

	m.repScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rep_score",
		Help:      "Histogram of final rep quality scores",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	m.repDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rep_duration_seconds",
		Help:      "Histogram of completed rep durations in seconds",
		Buckets:   m.histogramBuckets,
	})

	// Coaching Metrics
	m.cuesFired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cues_fired_total",
		Help:      "Total number of coaching cues emitted",
	})

	m.faultsDetected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "faults_detected_total",
		Help:      "Total number of form faults detected across reps",
	})

	// Config Quality Metrics
	m.predicatePanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predicate_panics_total",
		Help:      "Total number of exercise predicates that panicked (indicates config bugs)",
	})

	// Sink Queue Metrics - Event delivery performance
	m.sinkQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_queue_size",
		Help:      "Current size of the event sink queue (backlog indicator)",
	})

	m.sinkQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_queue_capacity",
		Help:      "Maximum event sink queue capacity",
	})

	m.sinkQueueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_queue_utilization_ratio",
		Help:      "Sink queue utilization ratio (current size / capacity)",
	})

	m.sinkEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_enqueue_total",
		Help:      "Total number of events enqueued to the sink",
	})

	m.sinkDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_dequeue_total",
		Help:      "Total number of events delivered from the sink",
	})

	m.sinkDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_dropped_total",
		Help:      "Total number of events dropped because the sink was full or closed",
	})

	// Session Metrics
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Number of tracking sessions currently open",
	})

	m.historyReps = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_reps",
		Help:      "Number of reps retained in the session history store",
	})

	// Error Metrics - Detailed error tracking
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// Frame Metrics Functions.

// RecordFrameProcessed increments the frames processed counter.
func RecordFrameProcessed() {
	globalManager.framesProcessed.Inc()
}

// RecordFrameGated increments the gated frames counter.
func RecordFrameGated() {
	globalManager.framesGated.Inc()
}

// RecordJointOccluded increments the occluded joints counter.
func RecordJointOccluded() {
	globalManager.jointsOccluded.Inc()
}

// RecordJointDropped increments the dropped joints counter.
func RecordJointDropped() {
	globalManager.jointsDropped.Inc()
}

// Rep Metrics Functions.

// RecordRepCompleted increments the completed reps counter.
func RecordRepCompleted() {
	globalManager.repsCompleted.Inc()
}

// RecordRepRejected increments the rejected reps counter.
func RecordRepRejected() {
	globalManager.repsRejected.Inc()
}

// ObserveRepScore records one final rep score.
func ObserveRepScore(score float64) {
	globalManager.repScore.Observe(score)
}

// ObserveRepDuration records one completed rep duration in seconds.
func ObserveRepDuration(seconds float64) {
	globalManager.repDuration.Observe(seconds)
}

// Coaching Metrics Functions.

// RecordCueFired increments the cues fired counter.
func RecordCueFired() {
	globalManager.cuesFired.Inc()
}

// RecordFaultDetected increments the faults detected counter.
func RecordFaultDetected() {
	globalManager.faultsDetected.Inc()
}

// RecordPredicatePanic increments the predicate panic counter.
func RecordPredicatePanic() {
	globalManager.predicatePanics.Inc()
}

// Sink Queue Metrics Functions.

// UpdateSinkQueueSize sets the current sink queue size.
func UpdateSinkQueueSize(size int) {
	globalManager.sinkQueueSize.Set(float64(size))
}

// UpdateSinkQueueCapacity sets the maximum sink queue capacity.
func UpdateSinkQueueCapacity(capacity int) {
	globalManager.sinkQueueCapacity.Set(float64(capacity))
}

// UpdateSinkQueueUtilization sets the sink queue utilization ratio.
func UpdateSinkQueueUtilization(utilization float64) {
	globalManager.sinkQueueUtilization.Set(utilization)
}

// RecordSinkEnqueue increments the sink enqueue counter.
func RecordSinkEnqueue() {
	globalManager.sinkEnqueues.Inc()
}

// RecordSinkDequeue increments the sink dequeue counter.
func RecordSinkDequeue() {
	globalManager.sinkDequeues.Inc()
}

// RecordSinkDropped increments the sink dropped counter.
func RecordSinkDropped() {
	globalManager.sinkDropped.Inc()
}

// Session Metrics Functions.

// UpdateActiveSessions sets the number of open sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// UpdateHistoryReps sets the number of reps held by the history store.
func UpdateHistoryReps(count int) {
	globalManager.historyReps.Set(float64(count))
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
