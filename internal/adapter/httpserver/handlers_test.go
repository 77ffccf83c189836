package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/queue/fsqueue"
	"github.com/fairyhunter13/ghostradio/internal/adapter/rss"
	"github.com/fairyhunter13/ghostradio/internal/adapter/status"
	"github.com/fairyhunter13/ghostradio/internal/config"
	"github.com/fairyhunter13/ghostradio/internal/usecase"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	q, err := fsqueue.New(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	st, err := status.New(filepath.Join(dir, "logs", "jobs"))
	require.NoError(t, err)
	cat, err := catalog.New(filepath.Join(dir, "episodes"), nil)
	require.NoError(t, err)
	feeds := rss.New(config.Podcast{Title: "Show"}, "http://localhost:8080")

	jobs := usecase.NewJobs(q, st, 3, nil)
	episodes := usecase.NewEpisodes(cat, feeds)
	health := usecase.NewHealth(func() bool { return false }, q, cat, nil)
	srv := NewServer(config.Config{}, jobs, episodes, health)

	r := chi.NewRouter()
	r.Post("/api/generate", srv.GenerateHandler())
	r.Get("/api/progress/{jobID}", srv.ProgressHandler())
	r.Post("/api/cancel/{jobID}", srv.CancelHandler())
	r.Get("/api/jobs", srv.ActiveJobsHandler())
	r.Get("/api/episodes", srv.EpisodesHandler())
	r.Get("/api/qrcode", srv.QRCodeHandler())
	r.Get("/health", srv.HealthzHandler())
	r.Get("/health/worker", srv.HealthWorkerHandler())
	r.Get("/health/full", srv.HealthFullHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestGenerateAndProgressRoundTrip(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)

	rec, out := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"url":"https://example.test/a","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	jobID, _ := out["job_id"].(string)
	require.Len(t, jobID, 8)

	rec, out = doJSON(t, h, http.MethodGet, "/api/progress/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobID, out["job_id"])
	assert.Equal(t, "queued", out["status"])
	assert.Equal(t, 5.0, out["progress"])
}

func TestGenerateInlineText(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	rec, out := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"prompt_text":"Good evening and welcome to the show.","need_summary":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
}

func TestGenerateEmptyBody(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	rec, out := doJSON(t, h, http.MethodPost, "/api/generate", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "INVALID_ARGUMENT", errObj["code"])
	assert.Contains(t, errObj["message"], "empty request body")
}

func TestGenerateMissingURL(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	rec, out := doJSON(t, h, http.MethodPost, "/api/generate", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "INVALID_ARGUMENT", errObj["code"])
}

func TestProgressUnknownJob(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	rec, out := doJSON(t, h, http.MethodGet, "/api/progress/deadbeef", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestCancelFlow(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	_, out := doJSON(t, h, http.MethodPost, "/api/generate", `{"url":"https://example.test/a"}`)
	jobID := out["job_id"].(string)

	rec, out := doJSON(t, h, http.MethodPost, "/api/cancel/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", out["status"])

	rec, out = doJSON(t, h, http.MethodPost, "/api/cancel/"+jobID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "NOT_CANCELLABLE", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "cancelled", details["status"])
}

func TestEpisodesReturnsBareList(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/episodes", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Empty(t, views)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestQRCodePayload(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)
	rec, out := doJSON(t, h, http.MethodGet, "/api/qrcode?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out["rss_url"], "/episodes/u1/feed.xml")
	assert.Contains(t, out["apple_podcasts_url"], "pcast://")
	assert.True(t, strings.HasPrefix(out["qr_code"].(string), "data:image/png;base64,"))
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t)

	rec, out := doJSON(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, out = doJSON(t, h, http.MethodGet, "/health/worker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["worker_running"])

	// no provider registry wired: not ready
	rec, _ = doJSON(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
