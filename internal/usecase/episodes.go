package usecase

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fairyhunter13/ghostradio/internal/adapter/audio"
	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/qrcode"
	"github.com/fairyhunter13/ghostradio/internal/adapter/rss"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Episodes serves catalog listings and feed subscription payloads.
type Episodes struct {
	catalog *catalog.Catalog
	feeds   *rss.Generator
}

// NewEpisodes constructs the episode service.
func NewEpisodes(cat *catalog.Catalog, feeds *rss.Generator) *Episodes {
	return &Episodes{catalog: cat, feeds: feeds}
}

// EpisodeView is the client-facing shape of one catalog entry.
type EpisodeView struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	AudioFile string  `json:"audio_file"`
	Created   string  `json:"created"`
	SizeMB    float64 `json:"size_mb"`
	Duration  string  `json:"duration"`
	SourceURL string  `json:"source_url,omitempty"`
}

// List returns the user's episodes newest first. Audio files dropped into
// the directory out of band are folded into the index first.
func (e *Episodes) List(ctx domain.Context, userID string) ([]EpisodeView, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.Episodes.List: %w", err)
	}
	if added, err := e.catalog.MigrateLegacy(ctx, userID); err != nil {
		slog.Warn("legacy episode migration failed", slog.String("user_id", userID), slog.Any("error", err))
	} else if added > 0 {
		slog.Info("migrated legacy episodes", slog.String("user_id", userID), slog.Int("added", added))
	}
	eps, err := e.catalog.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.Episodes.List: %w", err)
	}
	views := make([]EpisodeView, 0, len(eps))
	for _, ep := range eps {
		views = append(views, EpisodeView{
			ID:        ep.ID,
			Title:     ep.Title,
			AudioFile: filepath.Base(ep.AudioFile),
			Created:   ep.CreatedAt.Format("2006-01-02 15:04:05"),
			SizeMB:    ep.SizeMB,
			Duration:  audio.FormatDuration(ep.DurationSeconds),
			SourceURL: ep.SourceURL,
		})
	}
	return views, nil
}

// Delete removes one episode and its files.
func (e *Episodes) Delete(ctx domain.Context, userID, episodeID string) error {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return fmt.Errorf("op=usecase.Episodes.Delete: %w", err)
	}
	return e.catalog.Delete(ctx, userID, episodeID)
}

// Subscription returns the user's feed URL, its Apple Podcasts deep link
// and a QR code for it.
func (e *Episodes) Subscription(userID string) (qrcode.FeedPayload, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return qrcode.FeedPayload{}, fmt.Errorf("op=usecase.Episodes.Subscription: %w", err)
	}
	payload, err := qrcode.ForFeed(e.feeds.FeedURL(userID))
	if err != nil {
		return qrcode.FeedPayload{}, fmt.Errorf("op=usecase.Episodes.Subscription user_id=%s: %w", userID, err)
	}
	return payload, nil
}
