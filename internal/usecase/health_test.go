package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/queue/fsqueue"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

func TestCheckReportsWorkerState(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	q, err := fsqueue.New(dir)
	require.NoError(t, err)
	cat, err := catalog.New(dir+"/episodes", nil)
	require.NoError(t, err)
	ctx := context.Background()

	running := false
	h := NewHealth(func() bool { return running }, q, cat, nil)

	snap := h.Check(ctx)
	assert.Equal(t, "ok", snap.Status)
	assert.False(t, snap.WorkerRunning)

	running = true
	assert.True(t, h.Check(ctx).WorkerRunning)
}

func TestCheckCountsQueueAndEpisodes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	q, err := fsqueue.New(dir)
	require.NoError(t, err)
	cat, err := catalog.New(dir+"/episodes", nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Add(ctx, domain.Ticket{JobID: "job00001", UserID: "u1", URL: "https://example.test/a"})
	require.NoError(t, err)
	require.NoError(t, cat.Add(ctx, "u1", domain.Episode{ID: "20260824_120000", AudioFile: "a.mp3"}, 10))

	snap := NewHealth(nil, q, cat, nil).Check(ctx)
	assert.Equal(t, 1, snap.Queue.Pending)
	assert.Equal(t, 1, snap.Users)
	assert.Equal(t, 1, snap.Episodes)
}
