package tts

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// DefaultVolcengineURL is the ByteDance speech sync endpoint.
const DefaultVolcengineURL = "https://openspeech.bytedance.com/api/v1/tts"

// Volcengine synthesizes speech through the ByteDance sync HTTP API.
// Podcast-mode options (speakers, head/tail music, action 4) are routed
// to the WebSocket transport instead.
type Volcengine struct {
	baseURL     string
	podcastURL  string
	apiKey      string
	appID       string
	cluster     string
	voice       string
	hc          *http.Client
	dialPodcast podcastDialer
}

// NewVolcengine constructs the provider. baseURL may be empty for the
// production endpoint.
func NewVolcengine(baseURL, apiKey, appID, cluster, voice string) *Volcengine {
	if baseURL == "" {
		baseURL = DefaultVolcengineURL
	}
	return &Volcengine{
		baseURL:     baseURL,
		podcastURL:  defaultPodcastURL,
		apiKey:      apiKey,
		appID:       appID,
		cluster:     cluster,
		voice:       voice,
		hc:          &http.Client{Timeout: 60 * time.Second},
		dialPodcast: dialPodcastSocket,
	}
}

// Name returns the vendor id.
func (v *Volcengine) Name() string { return "volcengine" }

// Voice returns the default voice type.
func (v *Volcengine) Voice() string { return v.voice }

type volcRequest struct {
	App struct {
		AppID   string `json:"appid"`
		Token   string `json:"token"`
		Cluster string `json:"cluster"`
	} `json:"app"`
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Audio struct {
		VoiceType  string  `json:"voice_type"`
		Encoding   string  `json:"encoding"`
		SpeedRatio float64 `json:"speed_ratio"`
		SampleRate int     `json:"rate,omitempty"`
	} `json:"audio"`
	Request struct {
		ReqID     string `json:"reqid"`
		Text      string `json:"text"`
		TextType  string `json:"text_type"`
		Operation string `json:"operation"`
	} `json:"request"`
}

type volcResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// Synthesize renders text to outputPath. Multi-speaker podcast options
// switch to the WebSocket path; plain narration uses the sync API with
// sentence-boundary segmentation for long scripts.
func (v *Volcengine) Synthesize(ctx domain.Context, text, outputPath string, opts domain.TTSOptions) (domain.SynthesisResult, error) {
	if v.apiKey == "" || v.appID == "" {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine: credential missing: %w", domain.ErrNoProvider)
	}
	if opts.Action == 4 || len(opts.Speakers) > 0 {
		return v.synthesizePodcast(ctx, text, outputPath, opts)
	}
	observability.ProviderRequestsTotal.WithLabelValues(v.Name(), "synthesize").Inc()
	start := time.Now()
	res, err := synthesizeSegmented(ctx, text, outputPath, opts, func(ctx domain.Context, segment string) ([]byte, error) {
		return v.syncCall(ctx, segment, opts)
	})
	observability.ProviderRequestDuration.WithLabelValues(v.Name(), "synthesize").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	return res, nil
}

// Probe issues a minimal sync synthesis to confirm the credential works.
func (v *Volcengine) Probe(ctx domain.Context) error {
	if v.apiKey == "" || v.appID == "" {
		return fmt.Errorf("op=tts.volcengine.Probe: credential missing: %w", domain.ErrNoProvider)
	}
	_, err := v.syncCall(ctx, "你好", domain.TTSOptions{})
	if err != nil {
		return fmt.Errorf("op=tts.volcengine.Probe: %w", err)
	}
	return nil
}

func (v *Volcengine) syncCall(ctx domain.Context, text string, opts domain.TTSOptions) ([]byte, error) {
	var req volcRequest
	req.App.AppID = v.appID
	req.App.Token = v.apiKey
	req.App.Cluster = v.cluster
	req.User.UID = uuid.NewString()
	req.Audio.VoiceType = v.voice
	if opts.Voice != "" {
		req.Audio.VoiceType = opts.Voice
	}
	req.Audio.Encoding = opts.FileExt()
	// speed_rate is a percentage delta; the wire wants a ratio
	req.Audio.SpeedRatio = 1.0 + float64(opts.SpeedRate)/100.0
	req.Audio.SampleRate = opts.SampleRate
	req.Request.ReqID = uuid.NewString()
	req.Request.Text = text
	req.Request.TextType = "plain"
	req.Request.Operation = "sync"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	// the speech API uses a semicolon, not a space, after Bearer
	httpReq.Header.Set("Authorization", "Bearer;"+v.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}
	var out volcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("api error code=%d: %s", out.Code, out.Message)
	}
	if out.Data == "" {
		return nil, fmt.Errorf("no audio data in response")
	}
	audio, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}

func readBodySnippet(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(raw)
}
