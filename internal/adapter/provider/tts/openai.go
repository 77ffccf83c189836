package tts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// OpenAISpeech synthesizes through an OpenAI-compatible /audio/speech
// endpoint. The Edge-TTS bridge speaks the same wire format, so both
// vendors share this client.
type OpenAISpeech struct {
	name          string
	baseURL       string
	apiKey        string
	voice         string
	model         string
	assumeHealthy bool
	hc            *http.Client
}

// NewOpenAISpeech constructs the OpenAI speech provider.
func NewOpenAISpeech(baseURL, apiKey, voice string) *OpenAISpeech {
	return &OpenAISpeech{
		name:    "openai",
		baseURL: baseURL,
		apiKey:  apiKey,
		voice:   voice,
		model:   "tts-1",
		hc:      &http.Client{Timeout: 120 * time.Second},
	}
}

// NewEdgeTTS constructs the Edge-TTS provider against a local bridge. The
// free service carries no credential and is assumed healthy when probed.
func NewEdgeTTS(baseURL, voice string) *OpenAISpeech {
	return &OpenAISpeech{
		name:          "edge-tts",
		baseURL:       baseURL,
		voice:         voice,
		model:         "tts-1",
		assumeHealthy: true,
		hc:            &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the vendor id.
func (o *OpenAISpeech) Name() string { return o.name }

// Voice returns the default voice.
func (o *OpenAISpeech) Voice() string { return o.voice }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

// Synthesize renders text to outputPath, segmenting long scripts.
func (o *OpenAISpeech) Synthesize(ctx domain.Context, text, outputPath string, opts domain.TTSOptions) (domain.SynthesisResult, error) {
	if o.apiKey == "" && !o.assumeHealthy {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.%s: credential missing: %w", o.name, domain.ErrNoProvider)
	}
	observability.ProviderRequestsTotal.WithLabelValues(o.name, "synthesize").Inc()
	start := time.Now()
	res, err := synthesizeSegmented(ctx, text, outputPath, opts, func(ctx domain.Context, segment string) ([]byte, error) {
		return o.speechCall(ctx, segment, opts)
	})
	observability.ProviderRequestDuration.WithLabelValues(o.name, "synthesize").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	return res, nil
}

// Probe checks the credential against /models. The Edge-TTS bridge is
// assumed healthy as long as construction succeeded.
func (o *OpenAISpeech) Probe(ctx domain.Context) error {
	if o.assumeHealthy {
		return nil
	}
	if o.apiKey == "" {
		return fmt.Errorf("op=tts.%s.Probe: credential missing: %w", o.name, domain.ErrNoProvider)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("op=tts.%s.Probe: %w", o.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.hc.Do(req)
	if err != nil {
		return fmt.Errorf("op=tts.%s.Probe: %w", o.name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=tts.%s.Probe: status %d", o.name, resp.StatusCode)
	}
	return nil
}

func (o *OpenAISpeech) speechCall(ctx domain.Context, text string, opts domain.TTSOptions) ([]byte, error) {
	voice := o.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}
	body, err := json.Marshal(speechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          voice,
		Speed:          1.0 + float64(opts.SpeedRate)/100.0,
		ResponseFormat: opts.FileExt(),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}
	return io.ReadAll(resp.Body)
}
