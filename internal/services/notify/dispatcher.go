// Package notify turns a due reminder into one push notification.
package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"nudger/internal/api"
	"nudger/internal/apperr"
	"nudger/internal/metrics"
	"nudger/internal/models"
)

// Gateway sends one push message.
type Gateway interface {
	Send(ctx context.Context, msg api.Message) (*api.SendResponse, error)
}

// BodyResolver picks the body of a reminder. It must never fail.
type BodyResolver interface {
	Resolve(ctx context.Context, token, title string) string
}

// Outcome classifies one delivery attempt.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Rejected  Outcome = "rejected" // invalid or expired token
	Failed    Outcome = "error"
)

// Result is the classified answer to one send.
type Result struct {
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	MessageID  string        `json:"message_id,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Err returns nil for a delivered result and a GatewayError otherwise.
func (r Result) Err() error {
	if r.Outcome == Delivered {
		return nil
	}
	return &apperr.GatewayError{Outcome: string(r.Outcome), StatusCode: r.StatusCode, Detail: r.Detail}
}

// rejectCodes are FCM error codes meaning the token will never accept this
// message.
var rejectCodes = map[string]bool{
	"UNREGISTERED":       true,
	"SENDER_ID_MISMATCH": true,
}

// invalidArgument also covers malformed payloads, so it only rejects the
// token when FCM answers 400.
const invalidArgument = "INVALID_ARGUMENT"

// Classify maps a gateway answer onto an Outcome.
func Classify(resp *api.SendResponse, err error) Result {
	if err != nil {
		return Result{Outcome: Failed, Detail: err.Error()}
	}
	if resp == nil {
		return Result{Outcome: Failed, Detail: "empty gateway response"}
	}

	res := Result{StatusCode: resp.StatusCode, MessageID: resp.Name, Detail: resp.ErrorMessage}
	switch {
	case resp.Success():
		res.Outcome = Delivered
	case rejectCodes[resp.ErrorCode]:
		res.Outcome = Rejected
	case resp.StatusCode == http.StatusBadRequest && (resp.ErrorCode == invalidArgument || resp.ErrorStatus == invalidArgument):
		res.Outcome = Rejected
	case resp.StatusCode == http.StatusNotFound && resp.ErrorStatus == "NOT_FOUND":
		res.Outcome = Rejected
	default:
		res.Outcome = Failed
	}
	return res
}

// Dispatcher resolves the body of a due job and pushes it. Outcomes are
// logged and counted; they never feed back into scheduling and nothing is
// retried.
type Dispatcher struct {
	gateway  Gateway
	resolver BodyResolver
	timeout  time.Duration
	limiter  *rate.Limiter // nil = unlimited
	metrics  metrics.Sink
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher. A nil gateway makes every delivery fail
// with ErrGatewayUnavailable. timeout bounds each gateway call.
func NewDispatcher(gateway Gateway, resolver BodyResolver, timeout time.Duration, log zerolog.Logger, sink metrics.Sink) *Dispatcher {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Dispatcher{
		gateway:  gateway,
		resolver: resolver,
		timeout:  timeout,
		metrics:  sink,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// WithRateLimit caps gateway calls at rps per second. Zero or less disables
// the cap.
func (d *Dispatcher) WithRateLimit(rps int) *Dispatcher {
	if rps <= 0 {
		d.limiter = nil
		return d
	}
	d.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	return d
}

// Available reports whether a push gateway is configured.
func (d *Dispatcher) Available() bool {
	return d.gateway != nil
}

// Dispatch sends the reminder for one occurrence of job.
func (d *Dispatcher) Dispatch(ctx context.Context, job models.ScheduledJob) {
	body := d.resolver.Resolve(ctx, job.Token, job.Title)

	res := d.Deliver(ctx, api.Message{
		Token: job.Token,
		Title: job.Title,
		Body:  body,
		Data:  map[string]string{"job_id": job.JobID},
	})

	ev := d.log.Info()
	if res.Outcome != Delivered {
		ev = d.log.Warn()
	}
	ev.Str("job_id", job.JobID).
		Str("outcome", string(res.Outcome)).
		Int("status", res.StatusCode).
		Str("detail", res.Detail).
		Dur("duration", res.Duration).
		Msg("Dispatched scheduled reminder")
}

// Deliver pushes msg once and classifies the answer.
func (d *Dispatcher) Deliver(ctx context.Context, msg api.Message) Result {
	if d.gateway == nil {
		d.metrics.DeliveryOutcome(string(Failed))
		return Result{Outcome: Failed, Detail: apperr.ErrGatewayUnavailable.Error()}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.metrics.DeliveryOutcome(string(Failed))
			return Result{Outcome: Failed, Detail: "rate limit wait: " + err.Error(), Duration: time.Since(start)}
		}
	}
	resp, err := d.gateway.Send(ctx, msg)
	res := Classify(resp, err)
	res.Duration = time.Since(start)

	d.metrics.DeliveryOutcome(string(res.Outcome))
	d.metrics.DeliveryDuration(res.Duration)
	return res
}
