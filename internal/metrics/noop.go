package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ArmedJobs(count int)              {}
func (n *NoopSink) OccurrenceFired(frequency string) {}
func (n *NoopSink) OccurrenceSkipped(reason string)  {}
func (n *NoopSink) JobRetired(reason string)         {}
func (n *NoopSink) DeliveryOutcome(outcome string)   {}
func (n *NoopSink) DeliveryDuration(d time.Duration) {}
func (n *NoopSink) ContentSource(source string)      {}
