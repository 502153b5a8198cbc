package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics tracks pipeline throughput. A nil *Metrics records nothing.
type Metrics struct {
	mu sync.Mutex

	recordsTotal     *prometheus.CounterVec
	persistedTotal   prometheus.Counter
	completionsTotal *prometheus.CounterVec
	publishFailures  prometheus.Counter
	batchDuration    prometheus.Histogram
	batchSize        prometheus.Histogram

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vehicleflow",
			Subsystem: "pipeline",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vehicleflow",
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
	})
}

func newHistogram(name, help string, buckets []float64) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vehicleflow",
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// NewMetrics creates the pipeline collectors. They are not registered until
// Register is called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:       registerer,
		recordsTotal:     newCounterVec("records_total", "Inbound records by parse outcome", []string{"outcome"}),
		persistedTotal:   newCounter("vehicles_persisted_total", "Vehicles stored by the bulk insert"),
		completionsTotal: newCounterVec("completions_total", "Completion events published by envelope outcome", []string{"outcome"}),
		publishFailures:  newCounter("publish_failures_total", "Completion events that could not be published"),
		batchDuration:    newHistogram("batch_duration_seconds", "Time spent processing one batch", prometheus.DefBuckets),
		batchSize:        newHistogram("batch_size", "Records per batch", []float64{1, 2, 5, 10, 25, 50, 100, 250}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.recordsTotal,
		m.persistedTotal,
		m.completionsTotal,
		m.publishFailures,
		m.batchDuration,
		m.batchSize,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) observeBatch(size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordParsed(ok bool) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) recordPersisted(n int) {
	if m == nil {
		return
	}
	m.persistedTotal.Add(float64(n))
}

func (m *Metrics) recordPublished(success bool) {
	if m == nil {
		return
	}
	m.completionsTotal.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) recordPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
