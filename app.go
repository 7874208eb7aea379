package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"nudger/internal/api"
	"nudger/internal/apperr"
	"nudger/internal/config"
	"nudger/internal/database"
	"nudger/internal/httpapi"
	"nudger/internal/metrics"
	"nudger/internal/models"
	"nudger/internal/recurrence"
	"nudger/internal/services/content"
	"nudger/internal/services/notify"
	"nudger/internal/services/recipients"
	"nudger/internal/services/scheduler"
)

// App struct - main application state
type App struct {
	ctx context.Context
	cfg config.Config
	log zerolog.Logger
	db  *gorm.DB

	registry *prometheus.Registry
	sink     metrics.Sink

	gateway          notify.Gateway // nil = push disabled
	catalog          *content.Catalog
	resolver         *content.Resolver
	dispatcher       *notify.Dispatcher
	schedulerService *scheduler.Service
	recipients       *recipients.Registry

	now func() time.Time
}

// NewApp creates a new App application struct
func NewApp(cfg config.Config, log zerolog.Logger) *App {
	a := &App{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	if cfg.MetricsEnabled {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.sink = metrics.NewPrometheusSink(a.registry)
	} else {
		a.sink = metrics.NewNoopSink()
	}
	return a
}

// startup opens the database, seeds the tone catalog, wires the services and
// rebuilds the armed job set.
func (a *App) startup(ctx context.Context) error {
	a.ctx = ctx
	a.log.Info().Msg("Application starting up...")

	db, err := database.Open(a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	if a.cfg.SeedCatalog {
		if err := content.Seed(ctx, db, a.log); err != nil {
			return fmt.Errorf("failed to seed tone catalog: %w", err)
		}
	}

	a.catalog = content.NewCatalog(db)
	a.resolver = content.NewResolver(a.catalog, a.log, a.sink)
	a.recipients = recipients.NewRegistry(db, a.log)

	if a.gateway == nil && a.cfg.FCMServiceAccountFile != "" {
		client, err := api.NewClientFromServiceAccount(ctx, a.cfg.FCMEndpoint, a.cfg.FCMServiceAccountFile, a.cfg.FCMProjectID)
		if err != nil {
			a.log.Error().Err(err).Msg("Push gateway unavailable, notifications will not be sent")
		} else {
			client.SetTimeout(a.cfg.FCMTimeout)
			a.gateway = client
			a.log.Info().Str("project_id", client.ProjectID()).Msg("Push gateway initialized")
		}
	}
	if a.gateway == nil {
		a.log.Warn().Msg("No push gateway configured")
	}

	a.dispatcher = notify.NewDispatcher(a.gateway, a.resolver, a.cfg.FCMTimeout, a.log, a.sink).
		WithRateLimit(a.cfg.PushRatePerSec)

	a.schedulerService = scheduler.NewService(
		scheduler.NewJobStore(db),
		a.dispatcher,
		scheduler.Config{Workers: a.cfg.DispatchWorkers, FireTimeout: a.cfg.DispatchTimeout},
		a.log,
		a.sink,
	)
	if err := a.schedulerService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.log.Info().Msg("Startup complete")
	return nil
}

// shutdown stops the scheduler, letting in-flight fires finish within ctx,
// then closes the database.
func (a *App) shutdown(ctx context.Context) {
	a.log.Info().Msg("Application shutting down...")

	if a.schedulerService != nil {
		a.schedulerService.Stop(ctx)
	}

	if err := database.Close(a.db); err != nil {
		a.log.Error().Err(err).Msg("Error closing database")
	}

	a.log.Info().Msg("Shutdown complete")
}

// Scheduling

// ScheduleNotification compiles req against the current time, arms the job
// and persists it.
func (a *App) ScheduleNotification(ctx context.Context, req recurrence.Request) (*httpapi.ScheduleResponse, error) {
	if !a.dispatcher.Available() {
		return nil, apperr.ErrGatewayUnavailable
	}

	trig, err := recurrence.Compile(req, a.now())
	if err != nil {
		return nil, err
	}

	job := &models.ScheduledJob{
		Token:     strings.TrimSpace(req.Token),
		Title:     req.Title,
		Time:      strings.TrimSpace(req.Time),
		Frequency: string(trig.Kind),
		EndDate:   strings.TrimSpace(req.EndDate),
	}
	switch trig.Kind {
	case recurrence.Weekly:
		job.DayOfWeek = req.DayOfWeek
	case recurrence.Monthly:
		job.DayOfMonth = req.DayOfMonth
	}

	next, err := a.schedulerService.Schedule(ctx, job, trig)
	if err != nil {
		if !next.IsZero() {
			// Armed for this process lifetime but not persisted.
			return nil, fmt.Errorf("job '%s' is armed until restart but was not saved: %w", job.JobID, err)
		}
		return nil, err
	}

	resp := &httpapi.ScheduleResponse{
		Message:    "Notification scheduled successfully",
		JobID:      job.JobID,
		Frequency:  job.Frequency,
		Time:       job.Time,
		DayOfWeek:  job.DayOfWeek,
		DayOfMonth: job.DayOfMonth,
	}
	if job.EndDate != "" {
		resp.EndDate = &job.EndDate
	}
	if !next.IsZero() {
		s := next.Format(time.RFC3339)
		resp.NextRun = &s
	}
	return resp, nil
}

// CancelJob disarms and deletes a scheduled job.
func (a *App) CancelJob(ctx context.Context, jobID string) error {
	return a.schedulerService.Cancel(ctx, jobID)
}

// ListJobs returns the persisted jobs of token, or all jobs when token is empty.
func (a *App) ListJobs(ctx context.Context, token string) ([]scheduler.JobListResponse, error) {
	return a.schedulerService.List(ctx, token)
}

// ScheduledEntries returns the armed jobs ordered by next run.
func (a *App) ScheduledEntries() []scheduler.Entry {
	return a.schedulerService.Entries()
}

// Tones

// ListTones returns every tone with its picker metadata.
func (a *App) ListTones(ctx context.Context) ([]httpapi.ToneResponse, error) {
	tones, err := a.catalog.Tones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]httpapi.ToneResponse, len(tones))
	for i, t := range tones {
		out[i] = httpapi.ToneResponse{
			ToneID:      t.ToneID,
			ToneName:    t.ToneName,
			DisplayName: displayName(t.ToneName),
			ImageURL:    toneImagePath(t.ToneName),
		}
	}
	return out, nil
}

// GetTonePreference returns the effective tone of token.
func (a *App) GetTonePreference(ctx context.Context, token string) (*httpapi.TonePreferenceResponse, error) {
	tone, isDefault, err := a.catalog.EffectiveTone(ctx, token)
	if err != nil {
		return nil, err
	}
	return &httpapi.TonePreferenceResponse{
		Token:     token,
		Tone:      tone.ToneName,
		ToneID:    tone.ToneID,
		IsDefault: isDefault,
	}, nil
}

// SetTonePreference stores the tone preference of token. Unknown tones yield
// NotFound and change nothing.
func (a *App) SetTonePreference(ctx context.Context, token string, toneID uint) (*httpapi.SetToneResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Invalid("token", "token is required")
	}

	tone, err := a.catalog.SetPreference(ctx, token, toneID)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("tone", tone.ToneName).Msg("Updated tone preference")

	return &httpapi.SetToneResponse{
		Message: "Tone preference updated successfully",
		Token:   token,
		Tone:    tone.ToneName,
		ToneID:  tone.ToneID,
	}, nil
}

// TonePrompts lists the prompts of a tone. A tone without prompts is NotFound.
func (a *App) TonePrompts(ctx context.Context, toneID uint) (*httpapi.TonePromptsResponse, error) {
	prompts, err := a.catalog.Prompts(ctx, toneID)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, apperr.NotFound("prompts for tone", strconv.FormatUint(uint64(toneID), 10))
	}

	resp := &httpapi.TonePromptsResponse{ToneID: toneID, Prompts: make([]httpapi.PromptResponse, len(prompts))}
	for i, p := range prompts {
		resp.Prompts[i] = httpapi.PromptResponse{PromptID: p.PromptID, Text: p.Prompt}
	}
	return resp, nil
}

// RandomTonePrompt picks one prompt of a tone, falling back to neutral and
// then to a fixed literal.
func (a *App) RandomTonePrompt(ctx context.Context, toneID uint) httpapi.RandomPromptResponse {
	prompt, _ := a.resolver.ForTone(ctx, toneID)
	return httpapi.RandomPromptResponse{ToneID: toneID, Prompt: prompt}
}

// Push

// SendNotification pushes one message immediately.
func (a *App) SendNotification(ctx context.Context, req httpapi.SendRequest) (string, error) {
	if !a.dispatcher.Available() {
		return "", apperr.ErrGatewayUnavailable
	}
	switch {
	case strings.TrimSpace(req.Token) == "":
		return "", apperr.Invalid("token", "token is required")
	case strings.TrimSpace(req.Title) == "":
		return "", apperr.Invalid("title", "title is required")
	case strings.TrimSpace(req.Body) == "":
		return "", apperr.Invalid("body", "body is required")
	}

	res := a.dispatcher.Deliver(ctx, api.Message{
		Token:    req.Token,
		Title:    req.Title,
		Body:     req.Body,
		ImageURL: req.ImageURL,
	})
	if err := res.Err(); err != nil {
		a.log.Warn().Str("outcome", string(res.Outcome)).Int("status", res.StatusCode).Msg("Immediate push failed")
		return "", err
	}
	return res.MessageID, nil
}

// Recipients

// RegisterToken records a device token.
func (a *App) RegisterToken(ctx context.Context, token string) error {
	_, err := a.recipients.Register(ctx, token)
	return err
}

// RegisteredTokens lists every registered device token.
func (a *App) RegisteredTokens(ctx context.Context) ([]string, error) {
	return a.recipients.Tokens(ctx)
}

// Ping checks database connectivity.
func (a *App) Ping(ctx context.Context) error {
	return database.Ping(ctx, a.db)
}

// toneImagePath is the mood artwork path bundled with the client apps; the
// service does not serve it.
func toneImagePath(name string) string {
	return "/moods/" + name + ".png"
}

func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
