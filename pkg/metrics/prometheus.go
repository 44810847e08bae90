package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for evaluations_total.
const (
	OutcomeSuccess      = "success"
	OutcomeNoEvaluable  = "no_evaluable_records"
	OutcomeRecommender  = "recommender_error"
	OutcomeCancelled    = "cancelled"
	OutcomeInvalidInput = "invalid_input"
)

// Manager owns the Prometheus collectors of one evaluator process.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	enabled        bool
	customLabels   map[string]string
	registry       *prometheus.Registry

	// Dataset loading
	recordsLoaded        prometheus.Counter
	referenceEntriesSkip prometheus.Counter
	datasetLoadDuration  prometheus.Histogram

	// Evaluation runs
	recordsScored      prometheus.Counter
	recordsUnscored    prometheus.Counter
	recommenderErrors  prometheus.Counter
	recordScore        prometheus.Histogram
	recommenderLatency prometheus.Histogram
	evaluationDuration prometheus.Histogram
	aggregateScore     prometheus.Gauge
	evaluations        *prometheus.CounterVec
}

var scoreBuckets = prometheus.LinearBuckets(0, 0.1, 11) //nolint:gochecknoglobals // fixed [0,1] score buckets

var defaultManager *Manager //nolint:gochecknoglobals // process-wide manager used by the CLI

// Default returns the process-wide manager backed by its own registry,
// creating it on first use.
func Default() *Manager {
	if defaultManager == nil {
		defaultManager = NewManager()
	}
	return defaultManager
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry it
// registers on a fresh registry so that Go runtime collectors stay out.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "refeval",
		subsystem:      "evaluator",
		latencyBuckets: prometheus.ExponentialBuckets(0.05, 4, 10),
		enabled:        true,
		customLabels:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.recordsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_loaded_total",
		Help:        "Total number of dataset records loaded",
		ConstLabels: labels,
	})

	m.referenceEntriesSkip = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "reference_entries_skipped_total",
		Help:        "Reference entries ignored because they carry no usable record link",
		ConstLabels: labels,
	})

	m.datasetLoadDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dataset_load_duration_milliseconds",
		Help:        "Time spent reading and indexing a dataset",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.recordsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_scored_total",
		Help:        "Records that received a score (non-empty reference set)",
		ConstLabels: labels,
	})

	m.recordsUnscored = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_unscored_total",
		Help:        "Records left out of the aggregate because they have no references",
		ConstLabels: labels,
	})

	m.recommenderErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recommender_errors_total",
		Help:        "Errors returned by the recommender under test",
		ConstLabels: labels,
	})

	m.recordScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "record_score",
		Help:        "Distribution of per-record overlap scores",
		Buckets:     scoreBuckets,
		ConstLabels: labels,
	})

	m.recommenderLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recommender_latency_milliseconds",
		Help:        "Time spent producing the considered recommendations for one record",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.evaluationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "evaluation_duration_milliseconds",
		Help:        "Wall time of complete evaluation runs",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.aggregateScore = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "aggregate_score",
		Help:        "Aggregate score of the most recent successful evaluation",
		ConstLabels: labels,
	})

	m.evaluations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "evaluations_total",
			Help:        "Evaluation runs by outcome",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
}

// RecordDatasetLoaded records a completed dataset load.
func (m *Manager) RecordDatasetLoaded(records, skippedReferences int, durationMs float64) {
	if !m.enabled {
		return
	}
	m.recordsLoaded.Add(float64(records))
	m.referenceEntriesSkip.Add(float64(skippedReferences))
	m.datasetLoadDuration.Observe(durationMs)
}

// RecordScore records one scored record.
func (m *Manager) RecordScore(score float64) {
	if !m.enabled {
		return
	}
	m.recordsScored.Inc()
	m.recordScore.Observe(score)
}

// RecordUnscored records a record skipped for having no references.
func (m *Manager) RecordUnscored() {
	if !m.enabled {
		return
	}
	m.recordsUnscored.Inc()
}

// RecordRecommenderLatency records the time spent in the recommender for one record.
func (m *Manager) RecordRecommenderLatency(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.recommenderLatency.Observe(latencyMs)
}

// RecordRecommenderError increments the recommender error counter.
func (m *Manager) RecordRecommenderError() {
	if !m.enabled {
		return
	}
	m.recommenderErrors.Inc()
}

// RecordEvaluation records the end of an evaluation run. The aggregate score
// gauge only moves on success.
func (m *Manager) RecordEvaluation(outcome string, score, durationMs float64) {
	if !m.enabled {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evaluationDuration.Observe(durationMs)
	if outcome == OutcomeSuccess {
		m.aggregateScore.Set(score)
	}
}

// Gatherer exposes the underlying registry.
func (m *Manager) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all collected metrics to path in the Prometheus text
// exposition format.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	return nil
}
