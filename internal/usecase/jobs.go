// Package usecase wires the domain operations the HTTP surface exposes:
// job intake, progress reporting, cancellation, episode listings and
// service health.
package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/adapter/status"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// DefaultUserID receives episodes when a request names no user.
const DefaultUserID = "default"

// userIDPattern keeps user ids safe to use as directory names.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Jobs is the front-door service: it accepts generation requests, exposes
// per-job progress and honors cancellation.
type Jobs struct {
	queue      domain.QueueStore
	status     domain.StatusStore
	maxRetries int
	trigger    func()
	validate   *validator.Validate
	now        func() time.Time
}

// NewJobs constructs the job service. trigger is invoked after each
// successful enqueue to wake the worker; it may be nil.
func NewJobs(queue domain.QueueStore, statusStore domain.StatusStore, maxRetries int, trigger func()) *Jobs {
	return &Jobs{
		queue:      queue,
		status:     statusStore,
		maxRetries: maxRetries,
		trigger:    trigger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
	}
}

// GenerateRequest is the ingest payload. Top-level prompt_text and
// nlp_texts are conveniences that fold into the tts_config options.
type GenerateRequest struct {
	URL         string            `json:"url" validate:"omitempty,http_url"`
	UserID      string            `json:"user_id" validate:"omitempty,max=64"`
	LLMModel    string            `json:"llm_model"`
	TTSModel    string            `json:"tts_model"`
	NeedSummary *bool             `json:"need_summary"`
	TTSConfig   domain.TTSOptions `json:"tts_config"`
	PromptText  string            `json:"prompt_text"`
	NLPTexts    []string          `json:"nlp_texts"`
}

// Generate validates the request, persists the status document and queue
// ticket, and wakes the worker. Returns the new job id.
func (j *Jobs) Generate(ctx domain.Context, req GenerateRequest) (string, error) {
	if err := j.validate.Struct(req); err != nil {
		return "", fmt.Errorf("op=usecase.Generate: %w: %s", domain.ErrInvalidArgument, err)
	}
	if req.URL == "" {
		if req.PromptText == "" {
			return "", fmt.Errorf("op=usecase.Generate: url is required: %w", domain.ErrInvalidArgument)
		}
		// inline text skips the fetch stage entirely
		req.URL = domain.RawInputURL
	}
	userID, err := NormalizeUserID(req.UserID)
	if err != nil {
		return "", fmt.Errorf("op=usecase.Generate: %w", err)
	}

	opts := req.TTSConfig
	if req.PromptText != "" {
		opts.PromptText = req.PromptText
	}
	if len(req.NLPTexts) > 0 {
		opts.NLPTexts = req.NLPTexts
		if opts.Action == 0 {
			opts.Action = 4
		}
	}
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("op=usecase.Generate: %w", err)
	}
	needSummary := true
	if req.NeedSummary != nil {
		needSummary = *req.NeedSummary
	}

	jobID := uuid.NewString()[:8]
	now := j.now()
	job := domain.Job{
		ID:          jobID,
		URL:         req.URL,
		UserID:      userID,
		LLMModel:    req.LLMModel,
		TTSModel:    req.TTSModel,
		TTSConfig:   opts,
		NeedSummary: needSummary,
		Status:      domain.StatusPending,
		Progress:    0,
		Message:     "waiting to be processed",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := j.status.Create(ctx, job); err != nil {
		return "", fmt.Errorf("op=usecase.Generate job_id=%s: %w", jobID, err)
	}

	ticket := domain.Ticket{
		JobID:       jobID,
		UserID:      userID,
		URL:         req.URL,
		LLMModel:    req.LLMModel,
		TTSModel:    req.TTSModel,
		NeedSummary: needSummary,
		TTSConfig:   opts,
		CreatedAt:   now,
		MaxRetries:  j.maxRetries,
	}
	queueID, err := j.queue.Add(ctx, ticket)
	if err != nil {
		_ = j.status.Fail(ctx, jobID, "queue", err.Error(), false)
		return "", fmt.Errorf("op=usecase.Generate job_id=%s: %w", jobID, err)
	}
	if err := j.status.SetStatus(ctx, jobID, domain.StatusQueued, 5, "queued for processing"); err != nil {
		slog.Warn("queued transition failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	observability.EnqueueJob("generate")

	observability.LoggerFromContext(ctx).Info("job accepted",
		slog.String("job_id", jobID),
		slog.String("queue_id", queueID),
		slog.String("user_id", userID),
		slog.String("url", req.URL))
	if j.trigger != nil {
		j.trigger()
	}
	return jobID, nil
}

// ProgressView is the polling payload: the status document plus derived
// elapsed time and an advisory timeout warning.
type ProgressView struct {
	JobID string `json:"job_id"`
	domain.Job
	ElapsedSeconds float64 `json:"elapsed_time"`
	TimeoutWarning string  `json:"timeout_warning,omitempty"`
}

// Progress returns the live view of one job. A QUEUED job whose ticket
// has already been claimed is displayed as PROCESSING; this is a display
// aid only, the document itself is untouched.
func (j *Jobs) Progress(ctx domain.Context, jobID string) (ProgressView, error) {
	job, err := j.status.Get(ctx, jobID)
	if err != nil {
		return ProgressView{}, fmt.Errorf("op=usecase.Progress job_id=%s: %w", jobID, err)
	}
	if job.Status == domain.StatusQueued && !j.ticketPending(ctx, jobID) {
		job.Status = domain.StatusProcessing
		if job.Progress < 10 {
			job.Progress = 10
		}
		job.Message = "processing started"
	}
	now := j.now()
	return ProgressView{
		JobID:          job.ID,
		Job:            job,
		ElapsedSeconds: job.ElapsedTime(now),
		TimeoutWarning: status.TimeoutWarning(job, now),
	}, nil
}

func (j *Jobs) ticketPending(ctx domain.Context, jobID string) bool {
	tickets, err := j.queue.ListPending(ctx)
	if err != nil {
		return true
	}
	for _, t := range tickets {
		if t.JobID == jobID {
			return true
		}
	}
	return false
}

// Cancel requests cancellation of a job and returns the updated document.
// The worker consumes the ticket when it observes the flag; jobs that are
// already terminal return ErrNotCancellable.
func (j *Jobs) Cancel(ctx domain.Context, jobID string) (domain.Job, error) {
	job, err := j.status.Cancel(ctx, jobID)
	if err != nil {
		return job, fmt.Errorf("op=usecase.Cancel job_id=%s: %w", jobID, err)
	}
	observability.LoggerFromContext(ctx).Info("job cancelled", slog.String("job_id", jobID))
	return job, nil
}

// Active lists the non-terminal jobs.
func (j *Jobs) Active(ctx domain.Context) ([]domain.Job, error) {
	return j.status.ListActive(ctx)
}

// NormalizeUserID applies the default and rejects ids that are unsafe as
// directory names.
func NormalizeUserID(userID string) (string, error) {
	if userID == "" {
		return DefaultUserID, nil
	}
	if !userIDPattern.MatchString(userID) {
		return "", fmt.Errorf("user_id %q: %w", userID, domain.ErrInvalidArgument)
	}
	return userID, nil
}
