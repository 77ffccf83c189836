package tts

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// defaultPodcastURL is the multi-speaker podcast synthesis endpoint.
const defaultPodcastURL = "wss://openspeech.bytedance.com/api/v1/podcast_tts/ws"

// podcastConn is the subset of the websocket connection the podcast path
// uses; tests substitute a fake.
type podcastConn interface {
	Write(ctx domain.Context, typ websocket.MessageType, p []byte) error
	Read(ctx domain.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

type podcastDialer func(ctx domain.Context, url, apiKey string) (podcastConn, error)

func dialPodcastSocket(ctx domain.Context, url, apiKey string) (podcastConn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: map[string][]string{
			"Authorization": {"Bearer;" + apiKey},
		},
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type podcastTask struct {
	AppID        string   `json:"appid"`
	ReqID        string   `json:"reqid"`
	Action       int      `json:"action"`
	Text         string   `json:"text,omitempty"`
	NLPTexts     []string `json:"nlp_texts,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
	RandomOrder  bool     `json:"random_order"`
	UseHeadMusic bool     `json:"use_head_music"`
	UseTailMusic bool     `json:"use_tail_music"`
	Encoding     string   `json:"encoding"`
	SampleRate   int      `json:"sample_rate,omitempty"`
	SpeedRate    int      `json:"speed_rate,omitempty"`
}

type podcastEvent struct {
	Event    string  `json:"event"`
	Code     int     `json:"code"`
	Message  string  `json:"message"`
	Audio    string  `json:"audio,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// synthesizePodcast drives the multi-speaker WebSocket session: send one
// task frame, then collect audio chunks (binary frames or base64 text
// events) until the finished event.
func (v *Volcengine) synthesizePodcast(ctx domain.Context, text, outputPath string, opts domain.TTSOptions) (domain.SynthesisResult, error) {
	observability.ProviderRequestsTotal.WithLabelValues(v.Name(), "podcast").Inc()
	start := time.Now()
	defer func() {
		observability.ProviderRequestDuration.WithLabelValues(v.Name(), "podcast").Observe(time.Since(start).Seconds())
	}()

	conn, err := v.dialPodcast(ctx, v.podcastURL, v.apiKey)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: dial: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	task := podcastTask{
		AppID:        v.appID,
		ReqID:        uuid.NewString(),
		Action:       opts.Action,
		Speakers:     opts.Speakers,
		RandomOrder:  opts.RandomOrder,
		UseHeadMusic: opts.UseHeadMusic,
		UseTailMusic: opts.UseTailMusic,
		Encoding:     opts.FileExt(),
		SampleRate:   opts.SampleRate,
		SpeedRate:    opts.SpeedRate,
	}
	if opts.Action == 4 {
		task.NLPTexts = opts.NLPTexts
	} else {
		task.Text = text
	}
	frame, err := json.Marshal(task)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: send task: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: %w", err)
	}
	defer func() { _ = f.Close() }()

	var size int64
	var reported float64
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			_ = os.Remove(outputPath)
			return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: read: %w", err)
		}
		if typ == websocket.MessageBinary {
			n, err := f.Write(msg)
			if err != nil {
				_ = os.Remove(outputPath)
				return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: write: %w", err)
			}
			size += int64(n)
			continue
		}
		var ev podcastEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		if ev.Code != 0 {
			_ = os.Remove(outputPath)
			return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: api error code=%d: %s", ev.Code, ev.Message)
		}
		if ev.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(ev.Audio)
			if err != nil {
				continue
			}
			n, err := f.Write(chunk)
			if err != nil {
				_ = os.Remove(outputPath)
				return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: write: %w", err)
			}
			size += int64(n)
		}
		if ev.Event == "finished" {
			if ev.Duration > 0 {
				reported = ev.Duration
			}
			break
		}
	}
	if size == 0 {
		_ = os.Remove(outputPath)
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.volcengine.podcast: no audio received")
	}
	if reported == 0 {
		reported = estimateDuration(text)
	}
	return domain.SynthesisResult{Path: outputPath, Duration: reported, SizeBytes: size}, nil
}
