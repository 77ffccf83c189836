// Package status implements the per-job status document store and its
// state machine. One JSON file per job id under the jobs directory; the
// worker mutates, the HTTP layer reads. An in-memory cache backs reads so
// a torn or missing file degrades to the last observed snapshot.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Store is a filesystem-backed domain.StatusStore.
type Store struct {
	jobsDir string

	mu    sync.RWMutex
	cache map[string]domain.Job
}

// New creates the jobs directory and returns the store.
func New(jobsDir string) (*Store, error) {
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return nil, fmt.Errorf("op=status.New: %w", err)
	}
	return &Store{jobsDir: jobsDir, cache: map[string]domain.Job{}}, nil
}

// Create writes the initial PENDING document for a job.
func (s *Store) Create(ctx domain.Context, job domain.Job) error {
	now := time.Now()
	if job.Status == "" {
		job.Status = domain.StatusPending
	}
	if job.Message == "" {
		job.Message = "waiting to be processed"
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	if job.Stages == nil {
		job.Stages = []domain.StageRecord{}
	}
	if err := s.write(job); err != nil {
		return fmt.Errorf("op=status.Create job_id=%s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job document. Parse failures fall back to the cached
// snapshot so readers never observe a torn write.
func (s *Store) Get(ctx domain.Context, id string) (domain.Job, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Job{}, fmt.Errorf("op=status.Get job_id=%s: %w", id, domain.ErrNotFound)
		}
		return s.cached(id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return s.cached(id, err)
	}
	s.mu.Lock()
	s.cache[id] = job
	s.mu.Unlock()
	return job, nil
}

// SetStatus transitions a job and records the stage history entry when the
// new status is a pipeline stage. Terminal jobs reject the transition.
func (s *Store) SetStatus(ctx domain.Context, id string, st domain.Status, progress int, message string) error {
	return s.mutate(ctx, id, func(job *domain.Job) error {
		now := time.Now()
		job.Status = st
		job.Progress = progress
		if message != "" {
			job.Message = message
		}
		if isStage(st) {
			job.Stage = string(st)
			job.StageStartTime = &now
			job.Stages = append(job.Stages, domain.StageRecord{
				Stage:     string(st),
				Progress:  progress,
				Timestamp: now,
			})
		}
		return nil
	})
}

// Complete marks the job COMPLETED with its result payload.
func (s *Store) Complete(ctx domain.Context, id string, res domain.Result) error {
	return s.mutate(ctx, id, func(job *domain.Job) error {
		now := time.Now()
		job.Status = domain.StatusCompleted
		job.Progress = 100
		job.Message = "processing complete"
		job.Result = &res
		job.CompletedAt = &now
		return nil
	})
}

// Fail marks the job FAILED, or TIMEOUT when timeout is set, with error
// details attributed to the stage that broke.
func (s *Store) Fail(ctx domain.Context, id, stage, message string, timeout bool) error {
	return s.mutate(ctx, id, func(job *domain.Job) error {
		now := time.Now()
		job.Status = domain.StatusFailed
		if timeout {
			job.Status = domain.StatusTimeout
		}
		job.Error = message
		job.ErrorDetails = &domain.ErrorDetails{Stage: stage, Message: message}
		job.Message = "failed: " + message
		job.CompletedAt = &now
		return nil
	})
}

// Cancel marks a cancellable job CANCELLED and returns the updated
// document. Terminal jobs return ErrNotCancellable wrapped around the
// current state.
func (s *Store) Cancel(ctx domain.Context, id string) (domain.Job, error) {
	var out domain.Job
	err := s.mutateUnguarded(ctx, id, func(job *domain.Job) error {
		if !job.Status.Cancellable() {
			out = *job
			return fmt.Errorf("status=%s: %w", job.Status, domain.ErrNotCancellable)
		}
		now := time.Now()
		job.Status = domain.StatusCancelled
		job.Cancelled = true
		job.Message = "cancelled: user request"
		job.CompletedAt = &now
		out = *job
		return nil
	})
	return out, err
}

// ListActive returns jobs whose status is not terminal.
func (s *Store) ListActive(ctx domain.Context) ([]domain.Job, error) {
	entries, err := os.ReadDir(s.jobsDir)
	if err != nil {
		return nil, fmt.Errorf("op=status.ListActive: %w", err)
	}
	var active []domain.Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		job, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if !job.Status.Terminal() {
			active = append(active, job)
		}
	}
	return active, nil
}

// TimeoutWarning returns an advisory string when the job's current stage
// has passed 80% ("approaching") or 100% ("exceeded") of its budget.
func TimeoutWarning(job domain.Job, now time.Time) string {
	budget := domain.StageBudget(job.Stage)
	if budget == 0 || job.Status.Terminal() {
		return ""
	}
	elapsed := job.StageElapsed(now)
	if elapsed <= 0 {
		return ""
	}
	switch {
	case elapsed > budget:
		return fmt.Sprintf("stage '%s' has run %.0f seconds, exceeding the expected %.0f seconds",
			job.Stage, elapsed.Seconds(), budget.Seconds())
	case elapsed > time.Duration(float64(budget)*0.8):
		return fmt.Sprintf("stage '%s' is approaching timeout (%.0f/%.0f seconds)",
			job.Stage, elapsed.Seconds(), budget.Seconds())
	}
	return ""
}

func isStage(st domain.Status) bool {
	switch st {
	case domain.StatusProcessing, domain.StatusFetching,
		domain.StatusLLMProcessing, domain.StatusTTSGenerating:
		return true
	}
	return false
}

// mutate applies fn under the terminal guard.
func (s *Store) mutate(ctx domain.Context, id string, fn func(*domain.Job) error) error {
	return s.mutateUnguarded(ctx, id, func(job *domain.Job) error {
		if job.Status.Terminal() {
			return fmt.Errorf("status=%s is terminal: %w", job.Status, domain.ErrConflict)
		}
		return fn(job)
	})
}

func (s *Store) mutateUnguarded(ctx domain.Context, id string, fn func(*domain.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("op=status.update job_id=%s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("op=status.update job_id=%s: %w", id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("op=status.update job_id=%s: parse: %w", id, err)
	}
	if err := fn(&job); err != nil {
		return fmt.Errorf("op=status.update job_id=%s: %w", id, err)
	}
	job.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("op=status.update job_id=%s: %w", id, err)
	}
	if err := renameio.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("op=status.update job_id=%s: %w", id, err)
	}
	s.cache[id] = job
	return nil
}

func (s *Store) write(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path(job.ID), data, 0o644); err != nil {
		return err
	}
	s.cache[job.ID] = job
	return nil
}

func (s *Store) cached(id string, cause error) (domain.Job, error) {
	s.mu.RLock()
	job, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return job, nil
	}
	return domain.Job{}, fmt.Errorf("op=status.Get job_id=%s: %w", id, cause)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.jobsDir, id+".json")
}
