package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/rss"
	"github.com/fairyhunter13/ghostradio/internal/config"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

func newEpisodesFixture(t *testing.T) (*Episodes, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.New(t.TempDir(), nil)
	require.NoError(t, err)
	feeds := rss.New(config.Podcast{Title: "Show"}, "http://localhost:8080")
	return NewEpisodes(cat, feeds), cat
}

func TestListFormatsCatalogEntries(t *testing.T) {
	t.Parallel()
	eps, cat := newEpisodesFixture(t)
	ctx := context.Background()
	require.NoError(t, cat.Add(ctx, "u1", domain.Episode{
		ID:              "20260824_120000",
		Title:           "An Article",
		CreatedAt:       time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		AudioFile:       "20260824_120000.mp3",
		SizeMB:          1.5,
		DurationSeconds: 75,
		SourceURL:       "https://example.test/a",
	}, 10))

	views, err := eps.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "An Article", views[0].Title)
	assert.Equal(t, "2026-08-24 12:00:00", views[0].Created)
	assert.Equal(t, "1:15", views[0].Duration)
	assert.Equal(t, "20260824_120000.mp3", views[0].AudioFile)
}

func TestListRejectsUnsafeUser(t *testing.T) {
	t.Parallel()
	eps, _ := newEpisodesFixture(t)
	_, err := eps.List(context.Background(), "../other")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubscriptionPayload(t *testing.T) {
	t.Parallel()
	eps, _ := newEpisodesFixture(t)
	payload, err := eps.Subscription("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/episodes/default/feed.xml", payload.RSSURL)
	assert.Equal(t, "pcast://localhost:8080/episodes/default/feed.xml", payload.ApplePodcastURL)
	assert.True(t, strings.HasPrefix(payload.QRCode, "data:image/png;base64,"))
}
