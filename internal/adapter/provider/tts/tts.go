// Package tts implements the speech-synthesis backends: Volcengine
// (sync HTTP plus the multi-speaker podcast WebSocket), OpenAI speech,
// and an Edge-TTS compatible endpoint.
package tts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/pkg/textx"
)

// maxSegmentRunes caps one synthesis request; longer scripts are split on
// sentence boundaries and the audio concatenated.
const maxSegmentRunes = 1000

// estimateDuration approximates spoken length when a backend reports none.
// Mixed-language speech runs at roughly four characters per second.
func estimateDuration(text string) float64 {
	return float64(len([]rune(text))) / 4.0
}

// synthesizeSegmented splits text and calls synth per segment, appending
// the audio to outputPath. Only MP3 frame streams are append-safe; a
// multi-segment WAV request fails cleanly.
func synthesizeSegmented(
	ctx domain.Context,
	text, outputPath string,
	opts domain.TTSOptions,
	synth func(ctx domain.Context, segment string) ([]byte, error),
) (domain.SynthesisResult, error) {
	segments := textx.SplitSentences(text, maxSegmentRunes)
	if len(segments) == 0 {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize: empty text: %w", domain.ErrInvalidArgument)
	}
	if len(segments) > 1 && opts.FileExt() != "mp3" {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize: %s output cannot be concatenated across %d segments: %w",
			opts.FileExt(), len(segments), domain.ErrInvalidArgument)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize: %w", err)
	}
	defer func() { _ = f.Close() }()

	var size int64
	for i, seg := range segments {
		audio, err := synth(ctx, seg)
		if err != nil {
			_ = os.Remove(outputPath)
			return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize segment=%d/%d: %w", i+1, len(segments), err)
		}
		n, err := f.Write(audio)
		if err != nil {
			_ = os.Remove(outputPath)
			return domain.SynthesisResult{}, fmt.Errorf("op=tts.synthesize: write: %w", err)
		}
		size += int64(n)
	}
	return domain.SynthesisResult{
		Path:      outputPath,
		Duration:  estimateDuration(text),
		SizeBytes: size,
	}, nil
}
