package provider

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

type stubLLM struct {
	name     string
	probeErr error
}

func (s *stubLLM) Name() string  { return s.name }
func (s *stubLLM) Model() string { return "m" }
func (s *stubLLM) Chat(domain.Context, string, string) (domain.ChatResult, error) {
	return domain.ChatResult{Content: "ok"}, nil
}
func (s *stubLLM) Probe(domain.Context) error { return s.probeErr }

type stubTTS struct {
	name     string
	probeErr error
}

func (s *stubTTS) Name() string  { return s.name }
func (s *stubTTS) Voice() string { return "v" }
func (s *stubTTS) Synthesize(_ domain.Context, _ string, path string, _ domain.TTSOptions) (domain.SynthesisResult, error) {
	return domain.SynthesisResult{Path: path}, nil
}
func (s *stubTTS) Probe(domain.Context) error { return s.probeErr }

func newTestRegistry(t *testing.T, llm []domain.LLMProvider, tts []domain.TTSProvider) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "providers.json"), time.Second, llm, tts)
}

func TestProbeKeepsPassingCandidatesInOrder(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t,
		[]domain.LLMProvider{
			&stubLLM{name: "nvidia", probeErr: errors.New("down")},
			&stubLLM{name: "openai"},
		},
		[]domain.TTSProvider{
			&stubTTS{name: "volcengine"},
			&stubTTS{name: "edge-tts"},
		},
	)
	require.NoError(t, r.Probe(context.Background()))

	llm, err := r.CurrentLLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", llm.Name())

	tts, err := r.CurrentTTS()
	require.NoError(t, err)
	assert.Equal(t, "volcengine", tts.Name())
}

func TestProbeFailsWhenKindEmpty(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t,
		[]domain.LLMProvider{&stubLLM{name: "nvidia", probeErr: errors.New("down")}},
		[]domain.TTSProvider{&stubTTS{name: "edge-tts"}},
	)
	err := r.Probe(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoProvider)

	_, err = r.CurrentLLM()
	assert.ErrorIs(t, err, domain.ErrNoProvider)
}

func TestRotationIsStickyAndWraps(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t,
		[]domain.LLMProvider{&stubLLM{name: "nvidia"}, &stubLLM{name: "openai"}},
		[]domain.TTSProvider{&stubTTS{name: "volcengine"}},
	)
	require.NoError(t, r.Probe(context.Background()))

	next, err := r.ReportLLMFailure()
	require.NoError(t, err)
	assert.Equal(t, "openai", next.Name())

	// sticky: subsequent reads stay on the rotated-to backend
	cur, err := r.CurrentLLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", cur.Name())

	// wraps modulo the list length
	next, err = r.ReportLLMFailure()
	require.NoError(t, err)
	assert.Equal(t, "nvidia", next.Name())
}

func TestSingleCandidateHasNoFallback(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t,
		[]domain.LLMProvider{&stubLLM{name: "nvidia"}},
		[]domain.TTSProvider{&stubTTS{name: "volcengine"}},
	)
	require.NoError(t, r.Probe(context.Background()))

	_, err := r.ReportTTSFailure()
	assert.ErrorIs(t, err, domain.ErrNoFallback)

	// the sole backend is still current after the failed rotation
	cur, err := r.CurrentTTS()
	require.NoError(t, err)
	assert.Equal(t, "volcengine", cur.Name())
}

func TestProbePersistsSnapshot(t *testing.T) {
	t.Parallel()
	statePath := filepath.Join(t.TempDir(), "providers.json")
	r := NewRegistry(statePath, time.Second,
		[]domain.LLMProvider{&stubLLM{name: "nvidia"}},
		[]domain.TTSProvider{&stubTTS{name: "volcengine"}, &stubTTS{name: "edge-tts"}},
	)
	require.NoError(t, r.Probe(context.Background()))

	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, []string{"volcengine/v", "edge-tts/v"}, st.TTS)
	assert.Equal(t, "nvidia", st.CurrentLLM)
	assert.False(t, st.ProbedAt.IsZero())
}
