// Package catalog implements the per-user episode index with FIFO
// retention. Each user owns episodes/<user>/metadata.json holding
// {"episodes": [...]} newest first; audio and script files live next to
// it and are deleted together with evicted entries.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/renameio/v2"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Catalog is a filesystem-backed domain.EpisodeCatalog.
type Catalog struct {
	root   string
	prober domain.DurationProber
}

// New returns a catalog rooted at the episodes directory. prober may be
// nil; migration then records zero durations.
func New(root string, prober domain.DurationProber) (*Catalog, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("op=catalog.New: %w", err)
	}
	return &Catalog{root: root, prober: prober}, nil
}

// Root returns the episodes root directory.
func (c *Catalog) Root() string { return c.root }

// UserDir returns (and creates) the directory for one user's episodes.
func (c *Catalog) UserDir(userID string) (string, error) {
	dir := filepath.Join(c.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("op=catalog.UserDir user_id=%s: %w", userID, err)
	}
	return dir, nil
}

type index struct {
	Episodes []domain.Episode `json:"episodes"`
}

// Add inserts ep at the head of the user's index, replacing in place on id
// match, then evicts tail entries past maxEpisodes, deleting their files.
func (c *Catalog) Add(ctx domain.Context, userID string, ep domain.Episode, maxEpisodes int) error {
	dir, err := c.UserDir(userID)
	if err != nil {
		return err
	}
	idx, err := c.load(dir)
	if err != nil {
		return fmt.Errorf("op=catalog.Add user_id=%s: %w", userID, err)
	}

	replaced := false
	for i := range idx.Episodes {
		if idx.Episodes[i].ID == ep.ID {
			idx.Episodes[i] = ep
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Episodes = append([]domain.Episode{ep}, idx.Episodes...)
	}

	if maxEpisodes > 0 && len(idx.Episodes) > maxEpisodes {
		evicted := idx.Episodes[maxEpisodes:]
		idx.Episodes = idx.Episodes[:maxEpisodes]
		for _, old := range evicted {
			c.removeFiles(dir, old)
		}
	}

	if err := c.save(dir, idx); err != nil {
		return fmt.Errorf("op=catalog.Add user_id=%s: %w", userID, err)
	}
	return nil
}

// List returns the user's episodes, newest first. A user without a
// metadata file has an empty catalog, not an error.
func (c *Catalog) List(ctx domain.Context, userID string) ([]domain.Episode, error) {
	dir := filepath.Join(c.root, userID)
	idx, err := c.load(dir)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.List user_id=%s: %w", userID, err)
	}
	return idx.Episodes, nil
}

// Get returns one episode by id.
func (c *Catalog) Get(ctx domain.Context, userID, episodeID string) (domain.Episode, error) {
	eps, err := c.List(ctx, userID)
	if err != nil {
		return domain.Episode{}, err
	}
	for _, ep := range eps {
		if ep.ID == episodeID {
			return ep, nil
		}
	}
	return domain.Episode{}, fmt.Errorf("op=catalog.Get user_id=%s episode_id=%s: %w", userID, episodeID, domain.ErrNotFound)
}

// Delete removes the episode entry and its files.
func (c *Catalog) Delete(ctx domain.Context, userID, episodeID string) error {
	dir := filepath.Join(c.root, userID)
	idx, err := c.load(dir)
	if err != nil {
		return fmt.Errorf("op=catalog.Delete user_id=%s: %w", userID, err)
	}
	kept := idx.Episodes[:0]
	found := false
	for _, ep := range idx.Episodes {
		if ep.ID == episodeID {
			found = true
			c.removeFiles(dir, ep)
			continue
		}
		kept = append(kept, ep)
	}
	if !found {
		return fmt.Errorf("op=catalog.Delete user_id=%s episode_id=%s: %w", userID, episodeID, domain.ErrNotFound)
	}
	idx.Episodes = kept
	if err := c.save(dir, idx); err != nil {
		return fmt.Errorf("op=catalog.Delete user_id=%s: %w", userID, err)
	}
	return nil
}

// MigrateLegacy backfills index entries for audio files present in the
// user's directory but missing from metadata.json. Returns the number of
// entries added.
func (c *Catalog) MigrateLegacy(ctx domain.Context, userID string) (int, error) {
	dir, err := c.UserDir(userID)
	if err != nil {
		return 0, err
	}
	idx, err := c.load(dir)
	if err != nil {
		return 0, fmt.Errorf("op=catalog.MigrateLegacy user_id=%s: %w", userID, err)
	}
	known := make(map[string]bool, len(idx.Episodes))
	for _, ep := range idx.Episodes {
		known[ep.ID] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("op=catalog.MigrateLegacy user_id=%s: %w", userID, err)
	}
	added := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		mt, err := mimetype.DetectFile(path)
		if err != nil || !strings.HasPrefix(mt.String(), "audio/") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if known[id] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		var dur float64
		if c.prober != nil {
			if d, err := c.prober.Duration(path); err == nil {
				dur = d
			}
		}
		idx.Episodes = append(idx.Episodes, domain.Episode{
			ID:              id,
			Title:           strings.ReplaceAll(id, "_", " "),
			CreatedAt:       info.ModTime(),
			AudioFile:       name,
			SizeBytes:       info.Size(),
			SizeMB:          roundMB(info.Size()),
			DurationSeconds: dur,
		})
		known[id] = true
		added++
	}
	if added > 0 {
		if err := c.save(dir, idx); err != nil {
			return 0, fmt.Errorf("op=catalog.MigrateLegacy user_id=%s: %w", userID, err)
		}
	}
	return added, nil
}

// Users lists the user ids with an episode directory.
func (c *Catalog) Users(ctx domain.Context) ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.Users: %w", err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	return users, nil
}

func (c *Catalog) load(dir string) (index, error) {
	path := filepath.Join(dir, "metadata.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return index{Episodes: []domain.Episode{}}, nil
		}
		return index{}, err
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return index{}, err
	}
	if idx.Episodes == nil {
		idx.Episodes = []domain.Episode{}
	}
	return idx, nil
}

func (c *Catalog) save(dir string, idx index) error {
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644)
}

func (c *Catalog) removeFiles(dir string, ep domain.Episode) {
	for _, name := range []string{ep.AudioFile, ep.ScriptFile} {
		if name == "" {
			continue
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, filepath.Base(name))
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("episode file delete failed",
				slog.String("episode_id", ep.ID),
				slog.String("file", path),
				slog.Any("error", err))
		}
	}
}

func roundMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int(mb*100+0.5)) / 100
}

// EpisodeID formats a timestamp-based episode id.
func EpisodeID(now time.Time) string {
	return now.Format("20060102_150405")
}
