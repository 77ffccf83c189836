package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/adapter/queue/fsqueue"
	"github.com/fairyhunter13/ghostradio/internal/adapter/status"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

func newJobsFixture(t *testing.T) (*Jobs, *fsqueue.Store, *status.Store, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	q, err := fsqueue.New(dir)
	require.NoError(t, err)
	st, err := status.New(dir + "/jobs")
	require.NoError(t, err)
	var triggered atomic.Int32
	jobs := NewJobs(q, st, 3, func() { triggered.Add(1) })
	return jobs, q, st, &triggered
}

func TestGenerateCreatesStatusAndTicket(t *testing.T) {
	t.Parallel()
	jobs, q, st, triggered := newJobsFixture(t)
	ctx := context.Background()

	jobID, err := jobs.Generate(ctx, GenerateRequest{
		URL:      "https://example.test/article",
		UserID:   "u1",
		LLMModel: "nvidia",
		TTSModel: "volcengine",
	})
	require.NoError(t, err)
	assert.Len(t, jobID, 8)
	assert.Equal(t, int32(1), triggered.Load())

	job, err := st.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Equal(t, 5, job.Progress)
	assert.True(t, job.NeedSummary)

	tickets, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, jobID, tickets[0].JobID)
	assert.Equal(t, "u1", tickets[0].UserID)
	assert.Equal(t, 3, tickets[0].MaxRetries)
}

func TestGenerateRejectsMissingURL(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	_, err := jobs.Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerateRejectsUnsafeUserID(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	_, err := jobs.Generate(context.Background(), GenerateRequest{
		URL:    "https://example.test/a",
		UserID: "../escape",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerateFoldsPromptOptions(t *testing.T) {
	t.Parallel()
	jobs, q, _, _ := newJobsFixture(t)
	ctx := context.Background()

	_, err := jobs.Generate(ctx, GenerateRequest{
		URL:      "https://example.test/a",
		NLPTexts: []string{"host a line", "host b line"},
	})
	require.NoError(t, err)

	tickets, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, 4, tickets[0].TTSConfig.Action)
	assert.Equal(t, []string{"host a line", "host b line"}, tickets[0].TTSConfig.NLPTexts)
	assert.Equal(t, DefaultUserID, tickets[0].UserID)
}

func TestGenerateAcceptsInlineText(t *testing.T) {
	t.Parallel()
	jobs, q, _, _ := newJobsFixture(t)
	ctx := context.Background()

	_, err := jobs.Generate(ctx, GenerateRequest{
		PromptText:  "Good evening, listeners.",
		NeedSummary: boolPtr(false),
	})
	require.NoError(t, err)

	tickets, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.RawInputURL, tickets[0].URL)
	assert.Equal(t, "Good evening, listeners.", tickets[0].TTSConfig.PromptText)
	assert.False(t, tickets[0].NeedSummary)
}

func boolPtr(b bool) *bool { return &b }

func TestGenerateRejectsInvalidTTSOptions(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	_, err := jobs.Generate(context.Background(), GenerateRequest{
		URL:       "https://example.test/a",
		TTSConfig: domain.TTSOptions{SpeedRate: 500},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestProgressReportsTimeoutWarning(t *testing.T) {
	t.Parallel()
	jobs, _, st, _ := newJobsFixture(t)
	ctx := context.Background()

	jobID, err := jobs.Generate(ctx, GenerateRequest{URL: "https://example.test/a"})
	require.NoError(t, err)
	require.NoError(t, st.SetStatus(ctx, jobID, domain.StatusTTSGenerating, 60, "synthesizing audio"))

	// pretend nine minutes have passed inside a ten-minute stage budget
	jobs.now = func() time.Time { return time.Now().Add(9 * time.Minute) }
	view, err := jobs.Progress(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTTSGenerating, view.Status)
	assert.Contains(t, view.TimeoutWarning, "approaching")
	assert.Greater(t, view.ElapsedSeconds, 500.0)
}

func TestProgressPromotesClaimedQueuedJob(t *testing.T) {
	t.Parallel()
	jobs, q, _, _ := newJobsFixture(t)
	ctx := context.Background()

	jobID, err := jobs.Generate(ctx, GenerateRequest{URL: "https://example.test/a"})
	require.NoError(t, err)

	// while the ticket is pending the document is reported as-is
	view, err := jobs.Progress(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, view.Status)

	// once the worker claims the ticket the display promotes to processing
	tickets, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.NoError(t, q.MarkProcessed(ctx, tickets[0]))

	view, err = jobs.Progress(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, view.Status)
	assert.Equal(t, 10, view.Progress)
}

func TestProgressUnknownJob(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	_, err := jobs.Progress(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelQueuedJobIsTerminal(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	ctx := context.Background()

	jobID, err := jobs.Generate(ctx, GenerateRequest{URL: "https://example.test/a"})
	require.NoError(t, err)

	job, err := jobs.Cancel(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, job.Status)
	assert.True(t, job.Cancelled)

	_, err = jobs.Cancel(ctx, jobID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestActiveExcludesTerminalJobs(t *testing.T) {
	t.Parallel()
	jobs, _, _, _ := newJobsFixture(t)
	ctx := context.Background()

	keep, err := jobs.Generate(ctx, GenerateRequest{URL: "https://example.test/keep"})
	require.NoError(t, err)
	gone, err := jobs.Generate(ctx, GenerateRequest{URL: "https://example.test/gone"})
	require.NoError(t, err)
	_, err = jobs.Cancel(ctx, gone)
	require.NoError(t, err)

	active, err := jobs.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, keep, active[0].ID)
}
