package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"nudger/internal/apperr"
	"nudger/internal/logging"
	"nudger/internal/metrics"
	"nudger/internal/models"
	"nudger/internal/recurrence"
)

// Dispatcher is invoked once per occurrence. It must not fail the engine:
// delivery outcomes are its own concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.ScheduledJob)
}

// Config bounds the dispatch worker pool.
type Config struct {
	Workers     int
	FireTimeout time.Duration
}

const storeOpTimeout = 10 * time.Second

// Service is the scheduling engine. robfig/cron provides the timing loop;
// each entry's schedule is the job's own recurrence.Trigger. The store is the
// source of truth and the in-memory entries are rebuilt from it on Start.
type Service struct {
	store      *JobStore
	dispatcher Dispatcher
	cron       *cron.Cron
	sem        *semaphore.Weighted
	metrics    metrics.Sink
	log        zerolog.Logger
	cfg        Config
	clock      func() time.Time

	runCtx    context.Context
	cancelRun context.CancelFunc

	jobs   map[string]*armedJob
	jobsMu sync.Mutex
}

// armedJob is the transient scheduling handle of one job.
type armedJob struct {
	record    models.ScheduledJob
	trigger   recurrence.Trigger
	entryID   cron.EntryID
	firing    atomic.Bool
	cancelled atomic.Bool
}

// NewService creates a new scheduler service
func NewService(store *JobStore, dispatcher Dispatcher, cfg Config, log zerolog.Logger, sink metrics.Sink) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = 30 * time.Second
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	log = log.With().Str("component", "scheduler").Logger()
	cronLog := logging.CronLogger(log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		cron:       c,
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		metrics:    sink,
		log:        log,
		cfg:        cfg,
		clock:      time.Now,
		runCtx:     ctx,
		cancelRun:  cancel,
		jobs:       make(map[string]*armedJob),
	}
}

// Start rebuilds the armed set from the store and starts the timing loop.
// Occurrences missed while the process was down are not replayed: each job
// arms its next occurrence strictly after now. Jobs with none left retire.
func (s *Service) Start(ctx context.Context) error {
	s.log.Info().Msg("Starting scheduler...")

	records, err := s.store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	now := s.clock()
	armed := 0
	for i := range records {
		rec := records[i]
		trig, err := triggerFor(&rec, now.Location())
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("Failed to rebuild trigger, skipping job")
			continue
		}

		if trig.Next(now).IsZero() {
			s.log.Info().Str("job_id", rec.JobID).Str("trigger", trig.String()).Msg("Job has no future occurrence, retiring")
			if _, err := s.store.Remove(ctx, rec.JobID); err != nil {
				s.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("Failed to remove retired job")
			}
			s.metrics.JobRetired(metrics.RetiredNoFuture)
			continue
		}

		s.jobsMu.Lock()
		if _, exists := s.jobs[rec.JobID]; !exists {
			s.arm(rec, trig)
			armed++
		}
		s.jobsMu.Unlock()
	}

	s.cron.Start()
	s.log.Info().Int("jobs", armed).Int("workers", s.cfg.Workers).Msg("Scheduler started")
	return nil
}

// Stop halts the timing loop and waits for in-flight fires until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("Scheduler stop timed out with fires still in flight")
	}
	s.cancelRun()
	s.log.Info().Msg("Scheduler stopped")
}

// Schedule arms job under trig and persists it. It returns the first
// occurrence, or the zero time when trig has nothing left to fire, in which
// case nothing is armed or stored.
//
// A store failure is returned to the caller but the timer stays armed for the
// lifetime of this process. An id collision disarms and returns ErrJobExists.
func (s *Service) Schedule(ctx context.Context, job *models.ScheduledJob, trig recurrence.Trigger) (time.Time, error) {
	if job.JobID == "" {
		job.JobID = models.NewJobID(job.Token)
	}
	if trig.Kind == recurrence.Once {
		at := trig.At
		job.RunAt = &at
	}

	next := trig.Next(s.clock())
	if next.IsZero() {
		s.log.Info().Str("job_id", job.JobID).Str("trigger", trig.String()).Msg("No future occurrence, job retired without arming")
		s.metrics.JobRetired(metrics.RetiredNoFuture)
		return time.Time{}, nil
	}

	s.jobsMu.Lock()
	if _, exists := s.jobs[job.JobID]; exists {
		s.jobsMu.Unlock()
		return time.Time{}, ErrJobExists
	}
	aj := s.arm(*job, trig)
	s.jobsMu.Unlock()

	if err := s.store.Put(ctx, job); err != nil {
		if errors.Is(err, ErrJobExists) {
			s.disarm(aj)
			return time.Time{}, err
		}
		s.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to persist job, keeping it armed in memory")
		return next, err
	}

	s.log.Info().
		Str("job_id", job.JobID).
		Str("trigger", trig.String()).
		Time("next_run", next).
		Msg("Scheduled job")
	return next, nil
}

// Cancel disarms a job and deletes its record. A fire already in flight
// completes but nothing further is armed. Unknown ids yield NotFound and
// change nothing.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.jobsMu.Lock()
	aj, armed := s.jobs[jobID]
	if armed {
		aj.cancelled.Store(true)
		s.cron.Remove(aj.entryID)
		delete(s.jobs, jobID)
		s.metrics.ArmedJobs(len(s.jobs))
	}
	s.jobsMu.Unlock()

	removed, err := s.store.Remove(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	if !armed && !removed {
		return apperr.NotFound("job", jobID)
	}

	s.log.Info().Str("job_id", jobID).Bool("was_armed", armed).Msg("Cancelled job")
	return nil
}

// List returns persisted jobs, newest first. An empty token lists all.
func (s *Service) List(ctx context.Context, token string) ([]JobListResponse, error) {
	jobs, err := s.store.List(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	now := s.clock()
	responses := make([]JobListResponse, len(jobs))
	s.jobsMu.Lock()
	for i := range jobs {
		var next time.Time
		if aj, ok := s.jobs[jobs[i].JobID]; ok {
			next = aj.trigger.Next(now)
		}
		responses[i] = toJobListResponse(&jobs[i], next)
	}
	s.jobsMu.Unlock()

	return responses, nil
}

// Entries returns the armed jobs ordered by next run.
func (s *Service) Entries() []Entry {
	now := s.clock()

	s.jobsMu.Lock()
	entries := make([]Entry, 0, len(s.jobs))
	for id, aj := range s.jobs {
		entries = append(entries, Entry{
			JobID:   id,
			Title:   aj.record.Title,
			Trigger: aj.trigger.String(),
			NextRun: aj.trigger.Next(now),
		})
	}
	s.jobsMu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].NextRun.Equal(entries[j].NextRun) {
			return entries[i].JobID < entries[j].JobID
		}
		return entries[i].NextRun.Before(entries[j].NextRun)
	})
	return entries
}

// arm registers a cron entry for the job. Caller holds jobsMu.
func (s *Service) arm(job models.ScheduledJob, trig recurrence.Trigger) *armedJob {
	aj := &armedJob{record: job, trigger: trig}
	jobID := job.JobID
	aj.entryID = s.cron.Schedule(trig, cron.FuncJob(func() {
		s.onDue(jobID)
	}))
	s.jobs[jobID] = aj
	s.metrics.ArmedJobs(len(s.jobs))
	return aj
}

func (s *Service) disarm(aj *armedJob) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if cur, ok := s.jobs[aj.record.JobID]; ok && cur == aj {
		s.cron.Remove(aj.entryID)
		delete(s.jobs, aj.record.JobID)
		s.metrics.ArmedJobs(len(s.jobs))
	}
}

// onDue is the cron callback for one occurrence. It runs on cron's own
// goroutine, so waiting for a worker slot never stalls the timing loop.
func (s *Service) onDue(jobID string) {
	s.jobsMu.Lock()
	aj := s.jobs[jobID]
	s.jobsMu.Unlock()

	if aj == nil || aj.cancelled.Load() {
		s.metrics.OccurrenceSkipped(metrics.SkipCancelled)
		return
	}
	if !aj.firing.CompareAndSwap(false, true) {
		s.log.Warn().Str("job_id", jobID).Msg("Previous fire still in flight, skipping occurrence")
		s.metrics.OccurrenceSkipped(metrics.SkipOverlap)
		return
	}
	defer aj.firing.Store(false)

	if err := s.sem.Acquire(s.runCtx, 1); err != nil {
		s.metrics.OccurrenceSkipped(metrics.SkipShutdown)
		return
	}
	defer s.sem.Release(1)

	s.fire(aj)
}

// fire dispatches one occurrence and retires the job when its trigger has no
// further occurrence.
func (s *Service) fire(aj *armedJob) {
	job := aj.record
	s.log.Debug().Str("job_id", job.JobID).Str("trigger", aj.trigger.String()).Msg("Firing job")

	ctx, cancel := context.WithTimeout(s.runCtx, s.cfg.FireTimeout)
	s.dispatcher.Dispatch(ctx, job)
	cancel()
	s.metrics.OccurrenceFired(job.Frequency)

	if aj.cancelled.Load() {
		return
	}
	if !aj.trigger.Next(s.clock()).IsZero() {
		return
	}

	reason := metrics.RetiredExpired
	if !aj.trigger.Recurring() {
		reason = metrics.RetiredFired
	}
	s.retire(aj, reason)
}

func (s *Service) retire(aj *armedJob, reason string) {
	s.disarm(aj)

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if _, err := s.store.Remove(ctx, aj.record.JobID); err != nil {
		s.log.Warn().Err(err).Str("job_id", aj.record.JobID).Msg("Failed to remove retired job")
	}

	s.metrics.JobRetired(reason)
	s.log.Info().Str("job_id", aj.record.JobID).Str("reason", reason).Msg("Job retired")
}

// triggerFor rebuilds the trigger of a persisted job.
func triggerFor(job *models.ScheduledJob, loc *time.Location) (recurrence.Trigger, error) {
	req := recurrence.Request{
		Token:      job.Token,
		Title:      job.Title,
		Time:       job.Time,
		Frequency:  job.Frequency,
		DayOfWeek:  job.DayOfWeek,
		DayOfMonth: job.DayOfMonth,
		EndDate:    job.EndDate,
	}
	return recurrence.Restore(req, job.RunAt, loc)
}
