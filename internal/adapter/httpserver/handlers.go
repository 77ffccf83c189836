package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ghostradio/internal/config"
	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg      config.Config
	Jobs     *usecase.Jobs
	Episodes *usecase.Episodes
	Health   *usecase.Health
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, jobs *usecase.Jobs, episodes *usecase.Episodes, health *usecase.Health) *Server {
	return &Server{Cfg: cfg, Jobs: jobs, Episodes: episodes, Health: health}
}

// GenerateHandler accepts a generation request and returns the job id.
func (s *Server) GenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usecase.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			msg := "invalid json"
			if errors.Is(err, io.EOF) {
				msg = "empty request body"
			}
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, msg), nil)
			return
		}
		jobID, err := s.Jobs.Generate(r.Context(), req)
		if err != nil {
			LoggerFrom(r).Warn("generate rejected", slog.Any("error", err))
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"job_id":   jobID,
			"status":   domain.StatusQueued,
			"progress": 5,
			"message":  "task created successfully",
		})
	}
}

// ProgressHandler returns the live status document for one job.
func (s *Server) ProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.Jobs.Progress(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// CancelHandler requests cancellation of a job.
func (s *Server) CancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		job, err := s.Jobs.Cancel(r.Context(), jobID)
		if err != nil {
			var details interface{}
			if errors.Is(err, domain.ErrNotCancellable) {
				details = map[string]any{"status": job.Status}
			}
			writeError(w, r, err, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"job_id":  jobID,
			"status":  job.Status,
			"message": job.Message,
		})
	}
}

// ActiveJobsHandler lists the non-terminal jobs.
func (s *Server) ActiveJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := s.Jobs.Active(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if jobs == nil {
			jobs = []domain.Job{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
	}
}

// EpisodesHandler lists a user's episodes, newest first, as a bare JSON
// array.
func (s *Server) EpisodesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := s.Episodes.List(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if views == nil {
			views = []usecase.EpisodeView{}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// DeleteEpisodeHandler removes one episode and its files.
func (s *Server) DeleteEpisodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		episodeID := chi.URLParam(r, "episodeID")
		if err := s.Episodes.Delete(r.Context(), userID, episodeID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "episode_id": episodeID})
	}
}

// QRCodeHandler returns the user's feed URL, Apple Podcasts link and a QR
// code as a data URL.
func (s *Server) QRCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := s.Episodes.Subscription(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// HealthzHandler reports basic liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.Health.Check(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         snap.Status,
			"uptime_seconds": snap.UptimeSeconds,
		})
	}
}

// HealthWorkerHandler reports the worker lock state and queue depths.
func (s *Server) HealthWorkerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.Health.Check(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         snap.Status,
			"worker_running": snap.WorkerRunning,
			"queue":          snap.Queue,
		})
	}
}

// HealthSystemHandler reports catalog totals and provider availability.
func (s *Server) HealthSystemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.Health.Check(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    snap.Status,
			"users":     snap.Users,
			"episodes":  snap.Episodes,
			"providers": snap.Providers,
		})
	}
}

// HealthFullHandler reports the complete snapshot.
func (s *Server) HealthFullHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Health.Check(r.Context()))
	}
}

// ReadyzHandler answers 503 until at least one backend per kind is
// available.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.Health.Check(r.Context())
		if len(snap.Providers.LLM) == 0 || len(snap.Providers.TTS) == 0 {
			writeJSON(w, http.StatusServiceUnavailable, snap)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
