package fsqueue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func ticket(jobID string) domain.Ticket {
	return domain.Ticket{
		JobID:       jobID,
		UserID:      "default",
		URL:         "https://example.com/a",
		LLMModel:    "nvidia",
		TTSModel:    "volcengine",
		NeedSummary: true,
		MaxRetries:  3,
	}
}

func TestAddAndListPending(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	id1, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	id2, err := s.Add(ctx, ticket("bbbb2222"))
	require.NoError(t, err)

	got, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// sorted by queue id, oldest first
	assert.Equal(t, id1, got[0].QueueID)
	assert.Equal(t, id2, got[1].QueueID)
	assert.NotEmpty(t, got[0].Path)
	assert.Nil(t, got[0].LastAttempt)
}

func TestListPendingSkipsCorruptFiles(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.queueDir, "zzz_corrupt.json"), []byte("{nope"), 0o644))

	got, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aaaa1111", got[0].JobID)
}

func TestMarkProcessedMovesFile(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	got, err := s.ListPending(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MarkProcessed(ctx, got[0]))

	pending, processed, failed, err := s.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	// second move of the same ticket reports not found
	err = s.MarkProcessed(ctx, got[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkFailedWritesErrorCopy(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	got, err := s.ListPending(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(ctx, got[0], "tts exhausted"))

	pending, _, failed, err := s.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, failed)

	raw, err := os.ReadFile(filepath.Join(s.failedDir, filepath.Base(got[0].Path)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"failed_at"`)
	assert.Contains(t, string(raw), "tts exhausted")
}

func TestRetryIncrementsAndReenqueues(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	got, err := s.ListPending(ctx)
	require.NoError(t, err)

	newID, err := s.Retry(ctx, got[0])
	require.NoError(t, err)
	assert.NotEqual(t, got[0].QueueID, newID)

	got, err = s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].RetryCount)
	require.NotNil(t, got[0].LastAttempt)
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	tk := ticket("aaaa1111")
	tk.RetryCount = 3
	_, err := s.Add(ctx, tk)
	require.NoError(t, err)
	got, err := s.ListPending(ctx)
	require.NoError(t, err)

	_, err = s.Retry(ctx, got[0])
	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)

	// exhausted retry leaves the source ticket in place
	got, err = s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPruneProcessed(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, ticket("aaaa1111"))
	require.NoError(t, err)
	got, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, got[0]))

	old := filepath.Join(s.processedDir, filepath.Base(got[0].Path))
	past := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := s.PruneProcessed(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, processed, _, err := s.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}
