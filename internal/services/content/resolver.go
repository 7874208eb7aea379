package content

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"nudger/internal/apperr"
	"nudger/internal/metrics"
	"nudger/internal/models"
)

// DefaultPrompt is returned by ForTone when no tone has any prompt.
const DefaultPrompt = "Reminder: Check your goals today!"

// FallbackBody is the literal body used when no prompt can be resolved.
func FallbackBody(title string) string {
	return "Scheduled reminder: " + title
}

// Resolver picks a reminder body by walking the tone fallback chain:
// preferred tone, then neutral, then a literal built from the title.
type Resolver struct {
	catalog *Catalog
	metrics metrics.Sink
	log     zerolog.Logger
	pick    func(n int) int
}

// NewResolver creates a resolver over catalog.
func NewResolver(catalog *Catalog, log zerolog.Logger, sink metrics.Sink) *Resolver {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Resolver{
		catalog: catalog,
		metrics: sink,
		log:     log.With().Str("component", "content").Logger(),
		pick:    rand.IntN,
	}
}

// Resolve never fails. Storage errors along the chain count as "no data".
func (r *Resolver) Resolve(ctx context.Context, token, title string) string {
	var neutralID uint
	neutral, err := r.catalog.ToneByName(ctx, models.ToneNeutral)
	if err == nil {
		neutralID = neutral.ToneID
	} else {
		r.logLookup(err, "neutral tone")
	}

	toneID := neutralID
	pref, err := r.catalog.Preference(ctx, token)
	if err == nil {
		toneID = pref.ToneID
	} else {
		r.logLookup(err, "tone preference")
	}

	if toneID != 0 {
		if body, ok := r.pickFrom(ctx, toneID); ok {
			if toneID == neutralID {
				r.metrics.ContentSource(metrics.SourceNeutral)
			} else {
				r.metrics.ContentSource(metrics.SourceTone)
			}
			return body
		}
	}

	if neutralID != 0 && neutralID != toneID {
		if body, ok := r.pickFrom(ctx, neutralID); ok {
			r.metrics.ContentSource(metrics.SourceNeutral)
			return body
		}
	}

	r.metrics.ContentSource(metrics.SourceFallback)
	return FallbackBody(title)
}

// ForTone picks a prompt of toneID, falling back to the neutral tone and
// then to DefaultPrompt. The bool reports whether a catalog prompt was used.
func (r *Resolver) ForTone(ctx context.Context, toneID uint) (string, bool) {
	if body, ok := r.pickFrom(ctx, toneID); ok {
		return body, true
	}

	neutral, err := r.catalog.ToneByName(ctx, models.ToneNeutral)
	if err != nil {
		r.logLookup(err, "neutral tone")
		return DefaultPrompt, false
	}
	if neutral.ToneID != toneID {
		if body, ok := r.pickFrom(ctx, neutral.ToneID); ok {
			return body, true
		}
	}
	return DefaultPrompt, false
}

func (r *Resolver) pickFrom(ctx context.Context, toneID uint) (string, bool) {
	prompts, err := r.catalog.Prompts(ctx, toneID)
	if err != nil {
		r.logLookup(err, "prompts")
		return "", false
	}
	if len(prompts) == 0 {
		return "", false
	}
	return prompts[r.pick(len(prompts))].Prompt, true
}

func (r *Resolver) logLookup(err error, what string) {
	if errors.Is(err, apperr.ErrNotFound) {
		return
	}
	r.log.Warn().Err(err).Str("lookup", what).Msg("Content lookup failed, continuing fallback chain")
}
