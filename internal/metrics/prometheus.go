package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	armedJobs          prometheus.Gauge
	occurrencesFired   *prometheus.CounterVec
	occurrencesSkipped *prometheus.CounterVec
	jobsRetired        *prometheus.CounterVec

	deliveryOutcomes *prometheus.CounterVec
	deliveryDuration prometheus.Histogram

	contentSource *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initDeliveryMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.armedJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nudger_scheduler_armed_jobs",
		Help: "Number of jobs currently armed in the scheduler.",
	})
	s.occurrencesFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nudger_scheduler_occurrences_fired_total",
		Help: "Total number of occurrences dispatched, by frequency.",
	}, []string{"frequency"})
	s.occurrencesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nudger_scheduler_occurrences_skipped_total",
		Help: "Total number of due occurrences that were not dispatched.",
	}, []string{"reason"})
	s.jobsRetired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nudger_scheduler_jobs_retired_total",
		Help: "Total number of jobs retired by the scheduler.",
	}, []string{"reason"})

	s.register(reg, s.armedJobs, "nudger_scheduler_armed_jobs")
	s.register(reg, s.occurrencesFired, "nudger_scheduler_occurrences_fired_total")
	s.register(reg, s.occurrencesSkipped, "nudger_scheduler_occurrences_skipped_total")
	s.register(reg, s.jobsRetired, "nudger_scheduler_jobs_retired_total")
}

func (s *PrometheusSink) initDeliveryMetrics(reg prometheus.Registerer) {
	s.deliveryOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nudger_push_delivery_outcomes_total",
		Help: "Total number of push attempts by outcome.",
	}, []string{"outcome"})
	s.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nudger_push_duration_seconds",
		Help:    "Push gateway request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	s.contentSource = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nudger_content_source_total",
		Help: "Which step of the content fallback chain produced the body.",
	}, []string{"source"})

	s.register(reg, s.deliveryOutcomes, "nudger_push_delivery_outcomes_total")
	s.register(reg, s.deliveryDuration, "nudger_push_duration_seconds")
	s.register(reg, s.contentSource, "nudger_content_source_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("metrics: failed to register collector")
	}
}

func (s *PrometheusSink) ArmedJobs(count int) {
	s.armedJobs.Set(float64(count))
}

func (s *PrometheusSink) OccurrenceFired(frequency string) {
	s.occurrencesFired.WithLabelValues(frequency).Inc()
}

func (s *PrometheusSink) OccurrenceSkipped(reason string) {
	s.occurrencesSkipped.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) JobRetired(reason string) {
	s.jobsRetired.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomes.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) DeliveryDuration(d time.Duration) {
	s.deliveryDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) ContentSource(source string) {
	s.contentSource.WithLabelValues(source).Inc()
}
