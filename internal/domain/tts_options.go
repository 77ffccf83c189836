package domain

import "fmt"

// TTSOptions is the per-job synthesis configuration accepted on ingest and
// forwarded to the chosen TTS backend. Fields a backend does not understand
// are ignored by that backend.
type TTSOptions struct {
	// Voice overrides the provider's default voice or voice_type.
	Voice string `json:"voice,omitempty"`
	// SpeedRate is a percentage delta in [-50, 100]; 0 is normal speed.
	SpeedRate int `json:"speed_rate,omitempty"`
	// SampleRate in Hz; 0 lets the provider decide.
	SampleRate int `json:"sample_rate,omitempty"`
	// Encoding is the output container, "mp3" (default) or "wav".
	Encoding string `json:"encoding,omitempty"`

	// Podcast (multi-speaker) synthesis knobs.
	UseHeadMusic bool     `json:"use_head_music,omitempty"`
	UseTailMusic bool     `json:"use_tail_music,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
	RandomOrder  bool     `json:"random_order,omitempty"`
	// Action selects the podcast pipeline mode: 0 full generation,
	// 4 synthesis of pre-scripted dialogue.
	Action int `json:"action,omitempty"`

	// PromptText supplies raw input text, skipping the fetch stage.
	PromptText string `json:"prompt_text,omitempty"`
	// NLPTexts supplies pre-scripted dialogue lines for Action == 4.
	NLPTexts []string `json:"nlp_texts,omitempty"`
}

// Validate checks option ranges shared across backends.
func (o TTSOptions) Validate() error {
	if o.SpeedRate < -50 || o.SpeedRate > 100 {
		return fmt.Errorf("speed_rate %d out of range [-50, 100]: %w", o.SpeedRate, ErrInvalidArgument)
	}
	switch o.Encoding {
	case "", "mp3", "wav":
	default:
		return fmt.Errorf("encoding %q not supported: %w", o.Encoding, ErrInvalidArgument)
	}
	switch o.Action {
	case 0, 4:
	default:
		return fmt.Errorf("action %d not supported: %w", o.Action, ErrInvalidArgument)
	}
	if o.Action == 4 && len(o.NLPTexts) == 0 {
		return fmt.Errorf("action 4 requires nlp_texts: %w", ErrInvalidArgument)
	}
	return nil
}

// FileExt returns the output file extension for the configured encoding.
func (o TTSOptions) FileExt() string {
	if o.Encoding == "wav" {
		return "wav"
	}
	return "mp3"
}
