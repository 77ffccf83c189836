package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ghostradio/internal/adapter/audio"
	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/fetcher"
	"github.com/fairyhunter13/ghostradio/internal/adapter/provider"
	"github.com/fairyhunter13/ghostradio/internal/adapter/provider/llm"
	"github.com/fairyhunter13/ghostradio/internal/adapter/provider/tts"
	"github.com/fairyhunter13/ghostradio/internal/adapter/queue/fsqueue"
	"github.com/fairyhunter13/ghostradio/internal/adapter/rss"
	"github.com/fairyhunter13/ghostradio/internal/adapter/status"
	"github.com/fairyhunter13/ghostradio/internal/adapter/webhook"
	"github.com/fairyhunter13/ghostradio/internal/config"
	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/internal/prompts"
	"github.com/fairyhunter13/ghostradio/internal/usecase"
	"github.com/fairyhunter13/ghostradio/internal/worker"
)

// Core holds the wired application graph shared by the server and the
// one-shot worker command.
type Core struct {
	Cfg      config.Config
	Queue    *fsqueue.Store
	Status   *status.Store
	Catalog  *catalog.Catalog
	Registry *provider.Registry
	Worker   *worker.Worker
	Jobs     *usecase.Jobs
	Episodes *usecase.Episodes
	Health   *usecase.Health
}

// Bootstrap builds every adapter and usecase from config and probes the
// provider candidates. It fails when a whole backend kind is unavailable.
func Bootstrap(ctx context.Context, cfg config.Config) (*Core, error) {
	q, err := fsqueue.New(cfg.LogsRoot())
	if err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}
	st, err := status.New(cfg.JobsDir())
	if err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}
	prober := audio.New()
	cat, err := catalog.New(cfg.EpisodesRoot(), prober)
	if err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}
	podcast, err := config.LoadPodcast(cfg.PodcastConfigFile)
	if err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}
	feeds := rss.New(podcast, cfg.PublicBaseURL)
	ps, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}

	llms := []domain.LLMProvider{
		llm.New("nvidia", cfg.NvidiaBaseURL, cfg.NvidiaAPIKey, cfg.NvidiaModel),
		llm.New("openai", cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel),
	}
	ttss := []domain.TTSProvider{
		tts.NewVolcengine("", cfg.VolcengineAPIKey, cfg.VolcengineAppID, cfg.VolcengineCluster, cfg.VolcengineVoice),
		tts.NewOpenAISpeech(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITTSVoice),
		tts.NewEdgeTTS(cfg.EdgeTTSEndpoint, cfg.EdgeTTSVoice),
	}
	reg := provider.NewRegistry(cfg.ProvidersStateFile(), cfg.ProbeTimeout, llms, ttss)
	if err := reg.Probe(ctx); err != nil {
		return nil, fmt.Errorf("op=app.Bootstrap: %w", err)
	}

	w := worker.New(worker.Deps{
		Queue:    q,
		Status:   st,
		Catalog:  cat,
		Feeds:    feeds,
		Fetcher:  fetcher.New(cfg.FetchTimeout),
		Registry: reg,
		Prompts:  ps,
		Prober:   prober,
		Notifier: webhook.New(cfg.WebhookURL, cfg.WebhookMaxAttempts, cfg.WebhookTimeout),
	}, worker.Options{
		LockPath:      cfg.WorkerLockFile(),
		StageAttempts: cfg.StageAttempts,
		MaxEpisodes:   cfg.MaxEpisodesPerUser,
		ProcessedKeep: cfg.ProcessedKeep,
	})

	slog.Info("application wired",
		slog.String("logs", cfg.LogsRoot()),
		slog.String("episodes", cfg.EpisodesRoot()),
		slog.String("podcast", podcast.Title))

	return &Core{
		Cfg:      cfg,
		Queue:    q,
		Status:   st,
		Catalog:  cat,
		Registry: reg,
		Worker:   w,
		Jobs:     usecase.NewJobs(q, st, cfg.MaxRetries, w.Trigger),
		Episodes: usecase.NewEpisodes(cat, feeds),
		Health:   usecase.NewHealth(w.Running, q, cat, reg),
	}, nil
}
