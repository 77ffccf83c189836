// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// DataDir is the root for episodes/ and logs/ (queue, jobs, lock).
	DataDir     string `env:"DATA_DIR" envDefault:"."`
	EpisodesDir string `env:"EPISODES_DIR" envDefault:"episodes"`
	LogsDir     string `env:"LOGS_DIR" envDefault:"logs"`

	// PodcastConfigFile points at the YAML feed settings (title, author,
	// base_url and so on); PromptsFile at the YAML prompt templates.
	PodcastConfigFile string `env:"PODCAST_CONFIG_FILE" envDefault:"config.yaml"`
	PromptsFile       string `env:"PROMPTS_FILE" envDefault:"prompts.yaml"`

	// LLM backends, in candidate order.
	NvidiaAPIKey  string `env:"NVIDIA_API_KEY"`
	NvidiaBaseURL string `env:"NVIDIA_BASE_URL" envDefault:"https://integrate.api.nvidia.com/v1"`
	NvidiaModel   string `env:"NVIDIA_MODEL" envDefault:"deepseek-ai/deepseek-v3.1"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// TTS backends, in candidate order.
	VolcengineAPIKey  string `env:"VOLCENGINE_API_KEY"`
	VolcengineAppID   string `env:"VOLCENGINE_APPID"`
	VolcengineCluster string `env:"VOLCENGINE_CLUSTER" envDefault:"volcano_tts"`
	VolcengineVoice   string `env:"VOLCENGINE_VOICE" envDefault:"zh_female_xiaoxiao"`
	OpenAITTSVoice    string `env:"OPENAI_TTS_VOICE" envDefault:"alloy"`
	EdgeTTSEndpoint   string `env:"EDGE_TTS_ENDPOINT" envDefault:"http://localhost:5050/v1"`
	EdgeTTSVoice      string `env:"EDGE_TTS_VOICE" envDefault:"zh-CN-XiaoxiaoNeural"`

	ProbeTimeout  time.Duration `env:"PROVIDER_PROBE_TIMEOUT" envDefault:"10s"`
	StageAttempts int           `env:"STAGE_MAX_ATTEMPTS" envDefault:"3"`
	MaxRetries    int           `env:"TICKET_MAX_RETRIES" envDefault:"3"`

	MaxEpisodesPerUser    int           `env:"MAX_EPISODES_PER_USER" envDefault:"10"`
	ProcessedKeep         time.Duration `env:"PROCESSED_KEEP" envDefault:"168h"`
	WebhookURL            string        `env:"WEBHOOK_URL"`
	WebhookMaxAttempts    int           `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"3"`
	WebhookTimeout        time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	FetchTimeout          time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	PublicBaseURL         string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ghostradio"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// LogsRoot returns the directory holding queue state, job documents and
// the worker lock.
func (c Config) LogsRoot() string { return filepath.Join(c.DataDir, c.LogsDir) }

// JobsDir returns the job status document directory.
func (c Config) JobsDir() string { return filepath.Join(c.DataDir, c.LogsDir, "jobs") }

// EpisodesRoot returns the root of the per-user episode directories.
func (c Config) EpisodesRoot() string { return filepath.Join(c.DataDir, c.EpisodesDir) }

// WorkerLockFile returns the advisory lock path shared by all drain entry points.
func (c Config) WorkerLockFile() string { return filepath.Join(c.DataDir, c.LogsDir, "worker.lock") }

// ProvidersStateFile returns the probe/rotation snapshot path.
func (c Config) ProvidersStateFile() string {
	return filepath.Join(c.DataDir, c.LogsDir, "providers.json")
}

// Podcast holds the RSS feed settings loaded from the YAML config file.
type Podcast struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Email       string `yaml:"email"`
	Language    string `yaml:"language"`
	Category    string `yaml:"category"`
	BaseURL     string `yaml:"base_url"`
	CoverImage  string `yaml:"cover_image"`
}

type podcastFile struct {
	Podcast Podcast `yaml:"podcast"`
}

// LoadPodcast reads the feed settings from path. A missing file yields
// defaults rather than an error so the service can start bare.
func LoadPodcast(path string) (Podcast, error) {
	p := Podcast{
		Title:       "GhostRadio",
		Description: "AI Generated Podcast",
		Author:      "GhostRadio",
		Language:    "zh-CN",
		Category:    "Technology",
		CoverImage:  "cover.jpg",
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return Podcast{}, fmt.Errorf("op=config.LoadPodcast: %w", err)
	}
	var f podcastFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Podcast{}, fmt.Errorf("op=config.LoadPodcast: parse %s: %w", path, err)
	}
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&p.Title, f.Podcast.Title)
	merge(&p.Description, f.Podcast.Description)
	merge(&p.Author, f.Podcast.Author)
	merge(&p.Email, f.Podcast.Email)
	merge(&p.Language, f.Podcast.Language)
	merge(&p.Category, f.Podcast.Category)
	merge(&p.BaseURL, f.Podcast.BaseURL)
	merge(&p.CoverImage, f.Podcast.CoverImage)
	return p, nil
}
