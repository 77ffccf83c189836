// Package rss serializes a user's episode catalog into a podcast feed
// and writes it next to the episodes as feed.xml.
package rss

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/gorilla/feeds"

	"github.com/fairyhunter13/ghostradio/internal/config"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Generator renders feed.xml files.
type Generator struct {
	podcast config.Podcast
	baseURL string
}

// New returns a generator. baseURL is the public root serving /episodes/.
func New(podcast config.Podcast, baseURL string) *Generator {
	if podcast.BaseURL != "" {
		baseURL = podcast.BaseURL
	}
	return &Generator{podcast: podcast, baseURL: baseURL}
}

// FeedURL returns the public feed address for a user.
func (g *Generator) FeedURL(userID string) string {
	return fmt.Sprintf("%s/episodes/%s/feed.xml", g.baseURL, userID)
}

// Render builds the RSS XML for one user's episodes, newest first.
func (g *Generator) Render(userID string, episodes []domain.Episode) (string, error) {
	feed := &feeds.Feed{
		Title:       g.podcast.Title,
		Link:        &feeds.Link{Href: g.baseURL},
		Description: g.podcast.Description,
		Author:      &feeds.Author{Name: g.podcast.Author, Email: g.podcast.Email},
		Updated:     time.Now(),
		Image: &feeds.Image{
			Url:   g.baseURL + "/" + g.podcast.CoverImage,
			Title: g.podcast.Title,
			Link:  g.baseURL,
		},
	}
	for _, ep := range episodes {
		audioURL := fmt.Sprintf("%s/episodes/%s/%s", g.baseURL, userID, filepath.Base(ep.AudioFile))
		item := &feeds.Item{
			Title:       ep.Title,
			Link:        &feeds.Link{Href: audioURL},
			Description: fmt.Sprintf("Episode %s", ep.ID),
			Id:          ep.ID,
			Created:     ep.CreatedAt,
			Enclosure: &feeds.Enclosure{
				Url:    audioURL,
				Length: fmt.Sprintf("%d", ep.SizeBytes),
				Type:   mimeFor(ep.AudioFile),
			},
		}
		if ep.SourceURL != "" {
			item.Description += ", generated from " + ep.SourceURL
		}
		feed.Items = append(feed.Items, item)
	}
	xml, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("op=rss.Render user_id=%s: %w", userID, err)
	}
	return xml, nil
}

// Write renders and atomically writes feed.xml into the user's episode
// directory, returning the file path.
func (g *Generator) Write(userDir, userID string, episodes []domain.Episode) (string, error) {
	xml, err := g.Render(userID, episodes)
	if err != nil {
		return "", err
	}
	path := filepath.Join(userDir, "feed.xml")
	if err := renameio.WriteFile(path, []byte(xml), 0o644); err != nil {
		return "", fmt.Errorf("op=rss.Write user_id=%s: %w", userID, err)
	}
	return path, nil
}

func mimeFor(audioFile string) string {
	switch filepath.Ext(audioFile) {
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
