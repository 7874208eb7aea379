// Package metrics records scheduler and delivery counters.
package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Scheduler metrics
	ArmedJobs(count int)
	OccurrenceFired(frequency string)
	OccurrenceSkipped(reason string)
	JobRetired(reason string)

	// Delivery metrics
	DeliveryOutcome(outcome string)
	DeliveryDuration(d time.Duration)

	// Content metrics
	ContentSource(source string)
}

// Retirement reasons for JobRetired.
const (
	RetiredFired    = "fired"     // one-shot job after its single fire
	RetiredExpired  = "expired"   // recurring job past its end date
	RetiredNoFuture = "no_future" // no occurrence left at arm time
)

// Skip reasons for OccurrenceSkipped.
const (
	SkipOverlap   = "overlap"
	SkipCancelled = "cancelled"
	SkipShutdown  = "shutdown"
)

// Content sources for ContentSource.
const (
	SourceTone     = "tone"
	SourceNeutral  = "neutral"
	SourceFallback = "fallback"
)
