package domain

import "time"

// QueueStore persists job tickets as files and moves them between the
// queue, processed and failed directories.
type QueueStore interface {
	// Add writes a new ticket into the pending directory and returns its
	// queue id.
	Add(ctx Context, t Ticket) (string, error)
	// ListPending returns pending tickets ordered by queue id (oldest
	// first). Unparsable files are skipped, not returned as errors.
	ListPending(ctx Context) ([]Ticket, error)
	// MarkProcessed moves a claimed ticket to the processed directory.
	MarkProcessed(ctx Context, t Ticket) error
	// MarkFailed writes a failed copy (with failed_at and error) and
	// removes the pending file.
	MarkFailed(ctx Context, t Ticket, reason string) error
	// Retry re-enqueues the ticket under a fresh queue id with
	// retry_count incremented and last_attempt stamped.
	Retry(ctx Context, t Ticket) (string, error)
	// PruneProcessed removes processed tickets older than keep.
	PruneProcessed(ctx Context, keep time.Duration) (int, error)
	// Depths reports the pending, processed and failed counts.
	Depths(ctx Context) (pending, processed, failed int, err error)
}

// StatusStore owns the per-job status documents and their state machine.
type StatusStore interface {
	Create(ctx Context, job Job) error
	Get(ctx Context, id string) (Job, error)
	// SetStatus transitions a job, recording the stage history entry.
	// Terminal jobs reject further transitions with ErrConflict.
	SetStatus(ctx Context, id string, status Status, progress int, message string) error
	// Complete marks the job COMPLETED with its result payload.
	Complete(ctx Context, id string, res Result) error
	// Fail marks the job FAILED (or TIMEOUT when timeout is true) with
	// error details attributed to a stage.
	Fail(ctx Context, id, stage, message string, timeout bool) error
	// Cancel marks a cancellable job CANCELLED and returns the updated
	// document. Terminal jobs return ErrNotCancellable.
	Cancel(ctx Context, id string) (Job, error)
	// ListActive returns jobs whose status is not terminal.
	ListActive(ctx Context) ([]Job, error)
}

// EpisodeCatalog owns per-user episode metadata and FIFO retention.
type EpisodeCatalog interface {
	// Add inserts ep at the head (or replaces in place on id match) and
	// evicts from the tail until at most maxEpisodes remain. Evicted
	// episodes have their audio and script files deleted.
	Add(ctx Context, userID string, ep Episode, maxEpisodes int) error
	List(ctx Context, userID string) ([]Episode, error)
	Get(ctx Context, userID, episodeID string) (Episode, error)
	Delete(ctx Context, userID, episodeID string) error
}

// LLMProvider is one chat-completion backend.
type LLMProvider interface {
	Name() string
	Model() string
	Chat(ctx Context, system, user string) (ChatResult, error)
	// Probe performs a short health request.
	Probe(ctx Context) error
}

// TTSProvider is one speech-synthesis backend.
type TTSProvider interface {
	Name() string
	Voice() string
	Synthesize(ctx Context, text, outputPath string, opts TTSOptions) (SynthesisResult, error)
	Probe(ctx Context) error
}

// Fetcher retrieves an article and strips it to title + plain text.
type Fetcher interface {
	Fetch(ctx Context, url string) (FetchResult, error)
}

// Notifier delivers outbound job lifecycle events, best effort.
type Notifier interface {
	Notify(ctx Context, event string, data map[string]any) error
}

// DurationProber reports the playable length of an audio file in seconds.
type DurationProber interface {
	Duration(path string) (float64, error)
}
