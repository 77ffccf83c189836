// Package domain holds the core entities and ports of the podcast pipeline.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrNotCancellable   = errors.New("not cancellable")
	ErrNoProvider       = errors.New("no provider available")
	ErrNoFallback       = errors.New("no fallback provider")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrUpstreamTimeout  = errors.New("upstream timeout")
	ErrInternal         = errors.New("internal error")
)

// RawInputURL is the ticket URL marking inline text input: the worker
// uses the prompt text as the article body and skips the fetch stage.
const RawInputURL = "raw:"

// Status is the observable lifecycle state of a job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusQueued        Status = "queued"
	StatusProcessing    Status = "processing"
	StatusFetching      Status = "fetching"
	StatusLLMProcessing Status = "llm_processing"
	StatusTTSGenerating Status = "tts_generating"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
	StatusTimeout       Status = "timeout"
)

// Terminal reports whether no further status mutations are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Cancellable reports whether a cancel request may be honored in this state.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusQueued, StatusProcessing,
		StatusFetching, StatusLLMProcessing, StatusTTSGenerating:
		return true
	}
	return false
}

// Stage budgets used for advisory timeout warnings and worker-side aborts.
const (
	FetchBudget = 60 * time.Second
	LLMBudget   = 300 * time.Second
	TTSBudget   = 600 * time.Second
)

// StageBudget returns the time budget for a stage, or zero if unbudgeted.
func StageBudget(stage string) time.Duration {
	switch stage {
	case string(StatusFetching):
		return FetchBudget
	case string(StatusLLMProcessing):
		return LLMBudget
	case string(StatusTTSGenerating):
		return TTSBudget
	}
	return 0
}

// Ticket is a durable queue entry representing the intent to produce one
// episode. Tickets live as individual JSON files under the queue directory
// and are moved (by rename) to processed/ or failed/ when consumed.
type Ticket struct {
	QueueID     string     `json:"queue_id"`
	JobID       string     `json:"job_id"`
	UserID      string     `json:"user_id"`
	URL         string     `json:"url"`
	LLMModel    string     `json:"llm_model"`
	TTSModel    string     `json:"tts_model"`
	NeedSummary bool       `json:"need_summary"`
	TTSConfig   TTSOptions `json:"tts_config"`
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastAttempt *time.Time `json:"last_attempt"`

	// FailedAt and Error are only populated on copies written to failed/.
	FailedAt *time.Time `json:"failed_at,omitempty"`
	Error    string     `json:"error,omitempty"`

	// Path is the source file the ticket was listed from; not serialized.
	Path string `json:"-"`
}

// StageRecord is one entry in a job's stage history.
type StageRecord struct {
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// Result holds the success payload of a completed job.
type Result struct {
	AudioURL      string            `json:"audio_url"`
	EpisodeID     string            `json:"episode_id"`
	Title         string            `json:"title"`
	Duration      float64           `json:"duration"`
	TokensUsed    int               `json:"tokens_used"`
	ProvidersUsed map[string]string `json:"providers_used,omitempty"`
}

// ErrorDetails carries the stage and raw message of a failure for clients.
type ErrorDetails struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Job is the live, observable state of a ticket's processing. One JSON
// document per job id; written by the worker, polled by clients.
type Job struct {
	ID             string        `json:"id"`
	URL            string        `json:"url"`
	UserID         string        `json:"user_id"`
	LLMModel       string        `json:"llm_model"`
	TTSModel       string        `json:"tts_model"`
	TTSConfig      TTSOptions    `json:"tts_config"`
	NeedSummary    bool          `json:"need_summary"`
	Status         Status        `json:"status"`
	Progress       int           `json:"progress"`
	Message        string        `json:"message"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CompletedAt    *time.Time    `json:"completed_at"`
	Result         *Result       `json:"result"`
	Error          string        `json:"error,omitempty"`
	ErrorDetails   *ErrorDetails `json:"error_details,omitempty"`
	Cancelled      bool          `json:"cancelled"`
	Stage          string        `json:"stage"`
	StageStartTime *time.Time    `json:"stage_start_time,omitempty"`
	Stages         []StageRecord `json:"stages"`
	// SchemaVersion is absent (zero) for v1 documents.
	SchemaVersion int `json:"schema_version,omitempty"`
}

// ElapsedTime returns seconds since creation, frozen at completion.
func (j Job) ElapsedTime(now time.Time) float64 {
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(j.CreatedAt).Seconds()
}

// StageElapsed returns time spent in the current stage, or zero when no
// stage is running.
func (j Job) StageElapsed(now time.Time) time.Duration {
	if j.StageStartTime == nil {
		return 0
	}
	return now.Sub(*j.StageStartTime)
}

// Episode is a finalized audio artifact plus metadata in a user's catalog.
type Episode struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	CreatedAt       time.Time          `json:"created_at"`
	AudioFile       string             `json:"audio_file"`
	ScriptFile      string             `json:"script_file,omitempty"`
	SizeBytes       int64              `json:"size_bytes"`
	SizeMB          float64            `json:"size_mb"`
	DurationSeconds float64            `json:"duration_seconds"`
	SourceURL       string             `json:"source_url"`
	TokensUsed      map[string]int     `json:"tokens_used,omitempty"`
	ProvidersUsed   map[string]string  `json:"providers_used,omitempty"`
	StageTimings    map[string]float64 `json:"stage_timings,omitempty"`
}

// FetchResult is the outcome of fetching and stripping an article.
type FetchResult struct {
	Title   string
	Content string
	URL     string
}

// ChatResult is the outcome of one LLM call.
type ChatResult struct {
	Content    string
	TokensUsed int
}

// SynthesisResult is the outcome of one TTS call.
type SynthesisResult struct {
	Path      string
	Duration  float64
	SizeBytes int64
}

// Context is an alias so adapters and usecases pass context.Context through.
type Context = context.Context
