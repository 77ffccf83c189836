// Package audio probes audio file durations. MP3 is decoded frame by
// frame; WAV is read from its header. Unknown formats report zero so
// callers can fall back to a provider-reported value.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tcolgate/mp3"
)

// Prober implements domain.DurationProber.
type Prober struct{}

// New returns a prober.
func New() *Prober { return &Prober{} }

// Duration returns the playable length of the file in seconds. Decoder
// errors after at least one frame are ignored so a truncated tail does
// not zero out the whole measurement.
func (p *Prober) Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("op=audio.Duration: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		return wavDuration(f)
	}
	return mp3Duration(f)
}

func mp3Duration(r io.Reader) (float64, error) {
	dec := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	total := 0.0
	frames := 0
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF || frames > 0 {
				break
			}
			return 0, fmt.Errorf("op=audio.mp3Duration: %w", err)
		}
		total += frame.Duration().Seconds()
		frames++
	}
	return total, nil
}

// wavDuration reads the fmt and data chunks of a canonical RIFF/WAVE file.
func wavDuration(r io.Reader) (float64, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("op=audio.wavDuration: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("op=audio.wavDuration: not a wav file")
	}
	var byteRate uint32
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return 0, fmt.Errorf("op=audio.wavDuration: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return 0, fmt.Errorf("op=audio.wavDuration: %w", err)
			}
			if len(body) >= 12 {
				byteRate = binary.LittleEndian.Uint32(body[8:12])
			}
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("op=audio.wavDuration: data chunk before fmt")
			}
			return float64(size) / float64(byteRate), nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return 0, fmt.Errorf("op=audio.wavDuration: %w", err)
			}
		}
	}
}

// FormatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
