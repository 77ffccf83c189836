// Package fsqueue implements the durable job ticket queue as individual
// JSON files under three sibling directories: queue/ holds pending work,
// processed/ consumed tickets, failed/ exhausted ones. A ticket lives in
// exactly one of the three at any instant; transitions are renames.
package fsqueue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Store is a filesystem-backed domain.QueueStore.
type Store struct {
	queueDir     string
	processedDir string
	failedDir    string
}

// New creates the queue directories under logsRoot and returns the store.
func New(logsRoot string) (*Store, error) {
	s := &Store{
		queueDir:     filepath.Join(logsRoot, "queue"),
		processedDir: filepath.Join(logsRoot, "processed"),
		failedDir:    filepath.Join(logsRoot, "failed"),
	}
	for _, dir := range []string{s.queueDir, s.processedDir, s.failedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("op=fsqueue.New: %w", err)
		}
	}
	return s, nil
}

// NewQueueID returns a sortable id: timestamp plus 8 hex chars of entropy.
func NewQueueID(now time.Time) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102_150405") + "_" + entropy
}

// Add writes t as a pending ticket and returns its queue id.
func (s *Store) Add(ctx domain.Context, t domain.Ticket) (string, error) {
	now := time.Now()
	t.QueueID = NewQueueID(now)
	t.CreatedAt = now
	if t.RetryCount > 0 {
		t.LastAttempt = &now
	} else {
		t.LastAttempt = nil
	}
	if err := s.writeTicket(filepath.Join(s.queueDir, t.QueueID+".json"), t); err != nil {
		return "", fmt.Errorf("op=fsqueue.Add job_id=%s: %w", t.JobID, err)
	}
	return t.QueueID, nil
}

// ListPending returns pending tickets ordered by queue id. Unparsable
// files are logged and skipped so one corrupt ticket cannot stall the
// drain.
func (s *Store) ListPending(ctx domain.Context) ([]domain.Ticket, error) {
	entries, err := os.ReadDir(s.queueDir)
	if err != nil {
		return nil, fmt.Errorf("op=fsqueue.ListPending: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	tickets := make([]domain.Ticket, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.queueDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("queue file unreadable", slog.String("file", path), slog.Any("error", err))
			continue
		}
		var t domain.Ticket
		if err := json.Unmarshal(raw, &t); err != nil {
			slog.Warn("queue file unparsable", slog.String("file", path), slog.Any("error", err))
			continue
		}
		t.Path = path
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// MarkProcessed moves a claimed ticket into processed/.
func (s *Store) MarkProcessed(ctx domain.Context, t domain.Ticket) error {
	if t.Path == "" {
		return fmt.Errorf("op=fsqueue.MarkProcessed queue_id=%s: ticket has no source path: %w", t.QueueID, domain.ErrInvalidArgument)
	}
	dest := filepath.Join(s.processedDir, filepath.Base(t.Path))
	if err := os.Rename(t.Path, dest); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("op=fsqueue.MarkProcessed queue_id=%s: %w", t.QueueID, domain.ErrNotFound)
		}
		return fmt.Errorf("op=fsqueue.MarkProcessed queue_id=%s: %w", t.QueueID, err)
	}
	return nil
}

// MarkFailed writes a failed copy carrying failed_at and error, then
// removes the pending file.
func (s *Store) MarkFailed(ctx domain.Context, t domain.Ticket, reason string) error {
	if t.Path == "" {
		return fmt.Errorf("op=fsqueue.MarkFailed queue_id=%s: ticket has no source path: %w", t.QueueID, domain.ErrInvalidArgument)
	}
	now := time.Now()
	t.FailedAt = &now
	t.Error = reason
	dest := filepath.Join(s.failedDir, filepath.Base(t.Path))
	if err := s.writeTicket(dest, t); err != nil {
		return fmt.Errorf("op=fsqueue.MarkFailed queue_id=%s: %w", t.QueueID, err)
	}
	if err := os.Remove(t.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("op=fsqueue.MarkFailed queue_id=%s: remove source: %w", t.QueueID, err)
	}
	return nil
}

// Retry re-enqueues the ticket under a fresh queue id with retry_count
// incremented, then removes the old file. Exhausted tickets return
// ErrRetriesExhausted without touching the source.
func (s *Store) Retry(ctx domain.Context, t domain.Ticket) (string, error) {
	if t.RetryCount+1 > t.MaxRetries {
		return "", fmt.Errorf("op=fsqueue.Retry queue_id=%s retry_count=%d: %w", t.QueueID, t.RetryCount, domain.ErrRetriesExhausted)
	}
	src := t.Path
	t.RetryCount++
	t.FailedAt = nil
	t.Error = ""
	id, err := s.Add(ctx, t)
	if err != nil {
		return "", err
	}
	if src != "" {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("op=fsqueue.Retry queue_id=%s: remove source: %w", t.QueueID, err)
		}
	}
	return id, nil
}

// PruneProcessed removes processed tickets older than keep and reports
// how many were deleted.
func (s *Store) PruneProcessed(ctx domain.Context, keep time.Duration) (int, error) {
	entries, err := os.ReadDir(s.processedDir)
	if err != nil {
		return 0, fmt.Errorf("op=fsqueue.PruneProcessed: %w", err)
	}
	cutoff := time.Now().Add(-keep)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.processedDir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("prune failed", slog.String("file", path), slog.Any("error", err))
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Depths reports the pending, processed and failed ticket counts.
func (s *Store) Depths(ctx domain.Context) (pending, processed, failed int, err error) {
	count := func(dir string) (int, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				n++
			}
		}
		return n, nil
	}
	if pending, err = count(s.queueDir); err != nil {
		return 0, 0, 0, fmt.Errorf("op=fsqueue.Depths: %w", err)
	}
	if processed, err = count(s.processedDir); err != nil {
		return 0, 0, 0, fmt.Errorf("op=fsqueue.Depths: %w", err)
	}
	if failed, err = count(s.failedDir); err != nil {
		return 0, 0, 0, fmt.Errorf("op=fsqueue.Depths: %w", err)
	}
	return pending, processed, failed, nil
}

func (s *Store) writeTicket(path string, t domain.Ticket) error {
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, raw, 0o644)
}
