package scheduler

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"nudger/internal/apperr"
	"nudger/internal/models"
)

// ErrJobExists is returned by Put when the job id is already taken.
var ErrJobExists = errors.New("job id already exists")

// JobStore is the durable, keyed store of scheduled jobs. Writes to the same
// job id are serialized so a cancel racing a retirement cannot double-delete
// or resurrect a record.
type JobStore struct {
	db    *gorm.DB
	locks *keyedMutex
}

// NewJobStore creates a store over db. The scheduled_notifications table must
// already be migrated.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db, locks: newKeyedMutex()}
}

// Put inserts job. A colliding id is rejected with ErrJobExists rather than
// overwriting an unrelated job.
func (s *JobStore) Put(ctx context.Context, job *models.ScheduledJob) error {
	unlock := s.locks.Lock(job.JobID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ScheduledJob{}).Where("job_id = ?", job.JobID).Count(&count).Error; err != nil {
			return apperr.Storage("check job id", err)
		}
		if count > 0 {
			return ErrJobExists
		}
		if err := tx.Create(job).Error; err != nil {
			return apperr.Storage("create job", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrJobExists) && !apperr.IsStorage(err) {
		return apperr.Storage("begin job insert", err)
	}
	return err
}

// Get loads one job.
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.ScheduledJob, error) {
	var job models.ScheduledJob
	if err := s.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("job", jobID)
		}
		return nil, apperr.Storage("load job", err)
	}
	return &job, nil
}

// Remove deletes a job and reports whether a record was actually removed.
func (s *JobStore) Remove(ctx context.Context, jobID string) (bool, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	res := s.db.WithContext(ctx).Delete(&models.ScheduledJob{}, "job_id = ?", jobID)
	if res.Error != nil {
		return false, apperr.Storage("delete job", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List returns jobs newest first. An empty token lists every job.
func (s *JobStore) List(ctx context.Context, token string) ([]models.ScheduledJob, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if token != "" {
		q = q.Where("token = ?", token)
	}

	var jobs []models.ScheduledJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, apperr.Storage("list jobs", err)
	}
	return jobs, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is held and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
