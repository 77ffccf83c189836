// Package worker drains the job queue: one instance at a time, one job
// at a time, each job driven through fetch, script generation, speech
// synthesis and catalog persistence.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/adapter/provider"
	"github.com/fairyhunter13/ghostradio/internal/adapter/rss"
	"github.com/fairyhunter13/ghostradio/internal/adapter/webhook"
	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/internal/prompts"
)

// errCancelled aborts a pipeline when the job's cancelled flag is seen at
// a stage boundary. The ticket is still consumed.
var errCancelled = errors.New("job cancelled")

// Deps are the collaborators a Worker needs.
type Deps struct {
	Queue    domain.QueueStore
	Status   domain.StatusStore
	Catalog  *catalog.Catalog
	Feeds    *rss.Generator
	Fetcher  domain.Fetcher
	Registry *provider.Registry
	Prompts  *prompts.Store
	Prober   domain.DurationProber
	Notifier domain.Notifier
}

// Options tune the drain behavior.
type Options struct {
	LockPath      string
	StageAttempts int
	MaxEpisodes   int
	ProcessedKeep time.Duration
}

// Worker owns the single-flight drain loop.
type Worker struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	running bool
}

// New constructs a Worker with defaults applied.
func New(deps Deps, opts Options) *Worker {
	if opts.StageAttempts <= 0 {
		opts.StageAttempts = 3
	}
	if opts.MaxEpisodes <= 0 {
		opts.MaxEpisodes = 10
	}
	return &Worker{deps: deps, opts: opts, now: time.Now}
}

// Running reports whether a triggered drain pass is active in this
// process. Health checks read this instead of probing the drain lock so
// they never race a trigger for it.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Trigger starts a background drain unless one is already running. The
// running drain re-lists the queue between jobs, so a trigger that lands
// mid-drain needs no new task.
func (w *Worker) Trigger() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go func() {
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				w.crashCleanup(ctx, r)
			}
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
		}()
		if err := w.Drain(ctx); err != nil {
			slog.Error("drain pass failed", slog.Any("error", err))
		}
	}()
}

// Drain acquires the worker lock and processes pending tickets oldest
// first until the queue is empty. A held lock means another instance is
// draining; that is success, not an error.
func (w *Worker) Drain(ctx context.Context) error {
	lk := flock.New(w.opts.LockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return fmt.Errorf("op=worker.Drain: lock %s: %w", w.opts.LockPath, err)
	}
	if !locked {
		slog.Info("worker lock held elsewhere, skipping drain", slog.String("lock", w.opts.LockPath))
		return nil
	}
	defer func() { _ = lk.Unlock() }()
	// record the owning pid for operators
	_ = os.WriteFile(w.opts.LockPath, []byte(strconv.Itoa(os.Getpid())), 0o644)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tickets, err := w.deps.Queue.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("op=worker.Drain: %w", err)
		}
		if len(tickets) == 0 {
			break
		}
		// re-list after every job so tickets added mid-drain are seen
		if err := w.processOne(ctx, tickets[0]); err != nil {
			return fmt.Errorf("op=worker.Drain queue_id=%s: %w", tickets[0].QueueID, err)
		}
	}

	if w.opts.ProcessedKeep > 0 {
		if n, err := w.deps.Queue.PruneProcessed(ctx, w.opts.ProcessedKeep); err != nil {
			slog.Warn("processed ticket prune failed", slog.Any("error", err))
		} else if n > 0 {
			slog.Info("pruned processed tickets", slog.Int("removed", n))
		}
	}
	return nil
}

// processOne runs a single ticket end to end and guarantees the ticket
// leaves the pending directory. The returned error means the queue
// itself is broken and the drain must stop.
func (w *Worker) processOne(ctx context.Context, t domain.Ticket) error {
	log := slog.With(
		slog.String("job_id", t.JobID),
		slog.String("queue_id", t.QueueID),
		slog.String("user_id", t.UserID))

	if skip, err := w.reconcileStatus(ctx, t, log); skip || err != nil {
		return err
	}

	observability.StartProcessingJob("generate")
	res, perr := w.pipeline(ctx, t)
	switch {
	case perr == nil:
		observability.CompleteJob("generate")
		if err := w.deps.Queue.MarkProcessed(ctx, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		log.Info("job completed",
			slog.String("episode_id", res.EpisodeID),
			slog.Float64("duration", res.Duration))
		w.notify(ctx, webhook.EventJobSuccess, successPayload(t, res, w.now()))
		return nil

	case errors.Is(perr, errCancelled):
		observability.FailJob("generate")
		log.Info("job cancelled, consuming ticket")
		if err := w.deps.Queue.MarkProcessed(ctx, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return nil

	default:
		observability.FailJob("generate")
		log.Warn("job failed", slog.Any("error", perr))
		if queueID, err := w.deps.Queue.Retry(ctx, t); err == nil {
			log.Info("ticket re-enqueued", slog.String("queue_id", queueID), slog.Int("retry_count", t.RetryCount+1))
			return nil
		} else if !errors.Is(err, domain.ErrRetriesExhausted) {
			log.Warn("ticket retry failed", slog.Any("error", err))
		}
		if err := w.deps.Queue.MarkFailed(ctx, t, perr.Error()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		w.notify(ctx, webhook.EventJobFailed, failurePayload(t, perr, w.now()))
		return nil
	}
}

// reconcileStatus aligns the status document with a freshly claimed
// ticket. Completed and cancelled jobs consume the ticket without work;
// failed documents from an earlier attempt are reopened.
func (w *Worker) reconcileStatus(ctx context.Context, t domain.Ticket, log *slog.Logger) (skip bool, err error) {
	job, err := w.deps.Status.Get(ctx, t.JobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("status read failed, recreating document", slog.Any("error", err))
		}
		return false, w.createStatus(ctx, t, "queued for processing")
	}
	switch {
	case job.Cancelled:
		log.Info("skipping cancelled job")
		if err := w.deps.Queue.MarkProcessed(ctx, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return true, err
		}
		return true, nil
	case job.Status == domain.StatusCompleted:
		log.Info("job already completed, consuming duplicate ticket")
		if err := w.deps.Queue.MarkProcessed(ctx, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return true, err
		}
		return true, nil
	case job.Status.Terminal():
		// failed or timed out previously; this ticket is a retry
		log.Info("reopening job for retry", slog.Int("retry_count", t.RetryCount))
		return false, w.createStatus(ctx, t, fmt.Sprintf("retry attempt %d", t.RetryCount))
	}
	return false, nil
}

func (w *Worker) createStatus(ctx context.Context, t domain.Ticket, message string) error {
	now := w.now()
	job := domain.Job{
		ID:          t.JobID,
		URL:         t.URL,
		UserID:      t.UserID,
		LLMModel:    t.LLMModel,
		TTSModel:    t.TTSModel,
		TTSConfig:   t.TTSConfig,
		NeedSummary: t.NeedSummary,
		Status:      domain.StatusQueued,
		Progress:    5,
		Message:     message,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   now,
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if err := w.deps.Status.Create(ctx, job); err != nil {
		slog.Warn("status document create failed", slog.String("job_id", t.JobID), slog.Any("error", err))
	}
	return nil
}

// crashCleanup marks every non-terminal job as failed after a panicked
// drain. Tickets stay in the queue for the next pass.
func (w *Worker) crashCleanup(ctx context.Context, cause any) {
	slog.Error("worker crashed", slog.Any("panic", cause))
	jobs, err := w.deps.Status.ListActive(ctx)
	if err != nil {
		slog.Error("crash cleanup list failed", slog.Any("error", err))
		return
	}
	msg := fmt.Sprintf("worker crashed: %v", cause)
	for _, j := range jobs {
		if err := w.deps.Status.Fail(ctx, j.ID, j.Stage, msg, false); err != nil {
			slog.Warn("crash cleanup fail-mark failed", slog.String("job_id", j.ID), slog.Any("error", err))
		}
	}
}

func (w *Worker) notify(ctx context.Context, event string, data map[string]any) {
	if w.deps.Notifier == nil {
		return
	}
	if err := w.deps.Notifier.Notify(ctx, event, data); err != nil {
		slog.Warn("webhook delivery failed", slog.String("event", event), slog.Any("error", err))
	}
}

func successPayload(t domain.Ticket, res domain.Result, now time.Time) map[string]any {
	return map[string]any{
		"job_id":       t.JobID,
		"user_id":      t.UserID,
		"url":          t.URL,
		"episode_id":   res.EpisodeID,
		"title":        res.Title,
		"audio_url":    res.AudioURL,
		"duration":     res.Duration,
		"tokens_used":  res.TokensUsed,
		"completed_at": now.Format(time.RFC3339),
	}
}

func failurePayload(t domain.Ticket, perr error, now time.Time) map[string]any {
	return map[string]any{
		"job_id":       t.JobID,
		"user_id":      t.UserID,
		"url":          t.URL,
		"error":        perr.Error(),
		"retry_count":  t.RetryCount,
		"completed_at": now.Format(time.RFC3339),
	}
}
