package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/pkg/textx"
)

// pipeline drives one ticket through all stages. On failure the status
// document is already marked failed (or timeout) when the error returns;
// the caller decides the ticket's fate.
func (w *Worker) pipeline(ctx context.Context, t domain.Ticket) (domain.Result, error) {
	w.setStatus(ctx, t.JobID, domain.StatusProcessing, 10, "processing started")
	if w.isCancelled(ctx, t.JobID) {
		return domain.Result{}, errCancelled
	}

	timings := map[string]float64{}
	providersUsed := map[string]string{}
	tokens := map[string]int{}

	// fetch (skipped for inline text tickets)
	var fetched domain.FetchResult
	var stageStart time.Time
	if t.URL == domain.RawInputURL {
		fetched = rawInput(t.TTSConfig.PromptText)
		if fetched.Content == "" {
			err := fmt.Errorf("inline text ticket without prompt text: %w", domain.ErrInvalidArgument)
			return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusFetching), err)
		}
		w.setStatus(ctx, t.JobID, domain.StatusFetching, 25, "using provided text")
	} else {
		w.setStatus(ctx, t.JobID, domain.StatusFetching, 15, "fetching article")
		stageStart = w.now()
		fctx, cancel := context.WithTimeout(ctx, domain.FetchBudget)
		var err error
		fetched, err = w.deps.Fetcher.Fetch(fctx, t.URL)
		cancel()
		if err != nil {
			return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusFetching), err)
		}
		timings["fetch_s"] = time.Since(stageStart).Seconds()
		observability.ObserveStage(string(domain.StatusFetching), timings["fetch_s"])
		w.setStatus(ctx, t.JobID, domain.StatusFetching, 25, "article fetched: "+fetched.Title)
	}
	if w.isCancelled(ctx, t.JobID) {
		return domain.Result{}, errCancelled
	}

	// script
	script := fetched.Content
	mode := "full_text"
	if t.NeedSummary {
		mode = "summary"
		w.setStatus(ctx, t.JobID, domain.StatusLLMProcessing, 30, "generating script")
		stageStart = w.now()
		chat, providerName, err := w.runLLM(ctx, fetched)
		if err != nil {
			return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusLLMProcessing), err)
		}
		script = chat.Content
		tokens["llm"] = chat.TokensUsed
		providersUsed["llm"] = providerName
		timings["llm_s"] = time.Since(stageStart).Seconds()
		observability.ObserveStage(string(domain.StatusLLMProcessing), timings["llm_s"])
		w.setStatus(ctx, t.JobID, domain.StatusLLMProcessing, 50, "script generated")
		if w.isCancelled(ctx, t.JobID) {
			return domain.Result{}, errCancelled
		}
	}

	// synthesize
	w.setStatus(ctx, t.JobID, domain.StatusTTSGenerating, 60, "synthesizing audio")
	episodeID := catalog.EpisodeID(w.now())
	userDir, err := w.deps.Catalog.UserDir(t.UserID)
	if err != nil {
		return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusTTSGenerating), err)
	}
	audioFile := episodeID + "." + t.TTSConfig.FileExt()
	audioPath := filepath.Join(userDir, audioFile)
	stageStart = w.now()
	synth, ttsName, err := w.runTTS(ctx, script, audioPath, t.TTSConfig)
	if err != nil {
		return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusTTSGenerating), err)
	}
	providersUsed["tts"] = ttsName
	timings["tts_s"] = time.Since(stageStart).Seconds()
	observability.ObserveStage(string(domain.StatusTTSGenerating), timings["tts_s"])
	w.setStatus(ctx, t.JobID, domain.StatusTTSGenerating, 90, "audio generated")
	if w.isCancelled(ctx, t.JobID) {
		return domain.Result{}, errCancelled
	}

	// persist; stays under tts_generating so polled statuses never move
	// backward through the lifecycle
	w.setStatus(ctx, t.JobID, domain.StatusTTSGenerating, 95, "saving episode")
	scriptFile := episodeID + ".txt"
	if err := w.writeScript(filepath.Join(userDir, scriptFile), fetched.Title, t.URL, mode, script); err != nil {
		slog.Warn("script file write failed", slog.String("job_id", t.JobID), slog.Any("error", err))
		scriptFile = ""
	}
	duration := synth.Duration
	if w.deps.Prober != nil {
		if d, err := w.deps.Prober.Duration(audioPath); err == nil && d > 0 {
			duration = d
		}
	}

	ep := domain.Episode{
		ID:              episodeID,
		Title:           fetched.Title,
		CreatedAt:       w.now(),
		AudioFile:       audioFile,
		ScriptFile:      scriptFile,
		SizeBytes:       synth.SizeBytes,
		SizeMB:          sizeMB(synth.SizeBytes),
		DurationSeconds: duration,
		SourceURL:       t.URL,
		TokensUsed:      tokens,
		ProvidersUsed:   providersUsed,
		StageTimings:    timings,
	}
	if err := w.deps.Catalog.Add(ctx, t.UserID, ep, w.opts.MaxEpisodes); err != nil {
		return domain.Result{}, w.failStage(ctx, t.JobID, string(domain.StatusTTSGenerating), err)
	}
	w.regenerateFeed(ctx, t.UserID, userDir)
	observability.ObserveEpisode(duration)

	res := domain.Result{
		AudioURL:      fmt.Sprintf("episodes/%s/%s", t.UserID, audioFile),
		EpisodeID:     episodeID,
		Title:         fetched.Title,
		Duration:      duration,
		TokensUsed:    tokens["llm"],
		ProvidersUsed: providersUsed,
	}
	if err := w.deps.Status.Complete(ctx, t.JobID, res); err != nil {
		slog.Warn("complete transition failed", slog.String("job_id", t.JobID), slog.Any("error", err))
	}
	return res, nil
}

// runLLM calls the current chat backend, rotating and retrying on
// failure up to the per-stage attempt limit.
func (w *Worker) runLLM(ctx context.Context, fetched domain.FetchResult) (domain.ChatResult, string, error) {
	system := w.deps.Prompts.System("")
	user := w.deps.Prompts.User("default", map[string]string{
		"title":   fetched.Title,
		"content": fetched.Content,
		"url":     fetched.URL,
	})
	var lastErr error
	for attempt := 1; attempt <= w.opts.StageAttempts; attempt++ {
		p, err := w.deps.Registry.CurrentLLM()
		if err != nil {
			return domain.ChatResult{}, "", err
		}
		cctx, cancel := context.WithTimeout(ctx, domain.LLMBudget)
		res, err := p.Chat(cctx, system, user)
		cancel()
		if err == nil {
			return res, p.Name(), nil
		}
		lastErr = err
		slog.Warn("llm attempt failed",
			slog.Int("attempt", attempt),
			slog.String("provider", p.Name()),
			slog.Any("error", err))
		if _, rerr := w.deps.Registry.ReportLLMFailure(); rerr != nil && !errors.Is(rerr, domain.ErrNoFallback) {
			return domain.ChatResult{}, "", rerr
		}
	}
	return domain.ChatResult{}, "", fmt.Errorf("all %d llm attempts failed: %w", w.opts.StageAttempts, lastErr)
}

// runTTS mirrors runLLM for the speech backends.
func (w *Worker) runTTS(ctx context.Context, script, audioPath string, opts domain.TTSOptions) (domain.SynthesisResult, string, error) {
	var lastErr error
	for attempt := 1; attempt <= w.opts.StageAttempts; attempt++ {
		p, err := w.deps.Registry.CurrentTTS()
		if err != nil {
			return domain.SynthesisResult{}, "", err
		}
		sctx, cancel := context.WithTimeout(ctx, domain.TTSBudget)
		res, err := p.Synthesize(sctx, script, audioPath, opts)
		cancel()
		if err == nil {
			return res, p.Name(), nil
		}
		lastErr = err
		slog.Warn("tts attempt failed",
			slog.Int("attempt", attempt),
			slog.String("provider", p.Name()),
			slog.Any("error", err))
		if _, rerr := w.deps.Registry.ReportTTSFailure(); rerr != nil && !errors.Is(rerr, domain.ErrNoFallback) {
			return domain.SynthesisResult{}, "", rerr
		}
	}
	return domain.SynthesisResult{}, "", fmt.Errorf("all %d tts attempts failed: %w", w.opts.StageAttempts, lastErr)
}

func (w *Worker) writeScript(path, title, sourceURL, mode, script string) error {
	header := fmt.Sprintf("Title: %s\nSource: %s\nGenerated: %s\nMode: %s\n\n",
		title, sourceURL, w.now().Format("2006-01-02 15:04:05"), mode)
	return renameio.WriteFile(path, []byte(header+script), 0o644)
}

func (w *Worker) regenerateFeed(ctx context.Context, userID, userDir string) {
	if w.deps.Feeds == nil {
		return
	}
	eps, err := w.deps.Catalog.List(ctx, userID)
	if err != nil {
		slog.Warn("feed regeneration list failed", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if _, err := w.deps.Feeds.Write(userDir, userID, eps); err != nil {
		slog.Warn("feed regeneration failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// failStage records the failure on the status document, classifying
// budget overruns as timeouts.
func (w *Worker) failStage(ctx context.Context, jobID, stage string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstreamTimeout)
	if ferr := w.deps.Status.Fail(ctx, jobID, stage, err.Error(), timeout); ferr != nil {
		slog.Warn("fail transition rejected", slog.String("job_id", jobID), slog.Any("error", ferr))
	}
	return fmt.Errorf("stage %s: %w", stage, err)
}

func (w *Worker) setStatus(ctx context.Context, jobID string, s domain.Status, progress int, message string) {
	if err := w.deps.Status.SetStatus(ctx, jobID, s, progress, message); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// racing with a cancel; the boundary check will catch it
			return
		}
		slog.Warn("status transition failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (w *Worker) isCancelled(ctx context.Context, jobID string) bool {
	job, err := w.deps.Status.Get(ctx, jobID)
	return err == nil && job.Cancelled
}

// rawInput shapes inline prompt text like a fetched article, titling it
// with the first line.
func rawInput(text string) domain.FetchResult {
	content := strings.TrimSpace(text)
	title := content
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	return domain.FetchResult{
		Title:   textx.Truncate(title, 40),
		Content: content,
		URL:     domain.RawInputURL,
	}
}

func sizeMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int(mb*100+0.5)) / 100
}
