// Package provider holds the backend registry: the priority-ordered
// candidate lists for LLM and TTS, the startup health probe, and the
// sticky rotation the worker drives on failure.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Registry presents a single currently-chosen backend per kind and
// rotates on reported failure. Rotation is sticky: once moved off a
// backend it stays on the replacement until the next failure.
type Registry struct {
	statePath    string
	probeTimeout time.Duration

	mu        sync.Mutex
	llm       []domain.LLMProvider
	tts       []domain.TTSProvider
	availLLM  []domain.LLMProvider
	availTTS  []domain.TTSProvider
	curLLM    int
	curTTS    int
	lastProbe time.Time
}

// NewRegistry builds a registry over the declared candidate order.
// statePath may be empty to skip the observability snapshot file.
func NewRegistry(statePath string, probeTimeout time.Duration, llm []domain.LLMProvider, tts []domain.TTSProvider) *Registry {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Registry{
		statePath:    statePath,
		probeTimeout: probeTimeout,
		llm:          llm,
		tts:          tts,
	}
}

// Probe health-checks every candidate and retains the passing ones in
// declared order. The service starts as long as at least one candidate
// per kind survives.
func (r *Registry) Probe(ctx context.Context) error {
	availLLM := make([]domain.LLMProvider, 0, len(r.llm))
	for _, p := range r.llm {
		if err := r.probeOne(ctx, p.Name(), p.Probe); err != nil {
			slog.Warn("llm candidate failed probe", slog.String("provider", p.Name()), slog.String("model", p.Model()), slog.Any("error", err))
			continue
		}
		slog.Info("llm candidate available", slog.String("provider", p.Name()), slog.String("model", p.Model()))
		availLLM = append(availLLM, p)
	}
	availTTS := make([]domain.TTSProvider, 0, len(r.tts))
	for _, p := range r.tts {
		if err := r.probeOne(ctx, p.Name(), p.Probe); err != nil {
			slog.Warn("tts candidate failed probe", slog.String("provider", p.Name()), slog.Any("error", err))
			continue
		}
		slog.Info("tts candidate available", slog.String("provider", p.Name()), slog.String("voice", p.Voice()))
		availTTS = append(availTTS, p)
	}

	r.mu.Lock()
	r.availLLM = availLLM
	r.availTTS = availTTS
	r.curLLM = 0
	r.curTTS = 0
	r.lastProbe = time.Now()
	r.mu.Unlock()
	r.persist()

	if len(availLLM) == 0 {
		return fmt.Errorf("op=provider.Probe kind=llm: %w", domain.ErrNoProvider)
	}
	if len(availTTS) == 0 {
		return fmt.Errorf("op=provider.Probe kind=tts: %w", domain.ErrNoProvider)
	}
	return nil
}

func (r *Registry) probeOne(ctx context.Context, name string, probe func(domain.Context) error) error {
	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()
	return probe(pctx)
}

// CurrentLLM returns the currently-chosen chat backend.
func (r *Registry) CurrentLLM() (domain.LLMProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.availLLM) == 0 {
		return nil, fmt.Errorf("op=provider.CurrentLLM: %w", domain.ErrNoProvider)
	}
	return r.availLLM[r.curLLM], nil
}

// CurrentTTS returns the currently-chosen speech backend.
func (r *Registry) CurrentTTS() (domain.TTSProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.availTTS) == 0 {
		return nil, fmt.Errorf("op=provider.CurrentTTS: %w", domain.ErrNoProvider)
	}
	return r.availTTS[r.curTTS], nil
}

// ReportLLMFailure rotates to the next chat backend and returns it. With
// a single candidate there is nothing to rotate to.
func (r *Registry) ReportLLMFailure() (domain.LLMProvider, error) {
	r.mu.Lock()
	if len(r.availLLM) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("op=provider.ReportLLMFailure: %w", domain.ErrNoProvider)
	}
	if len(r.availLLM) == 1 {
		r.mu.Unlock()
		return nil, fmt.Errorf("op=provider.ReportLLMFailure: %w", domain.ErrNoFallback)
	}
	r.curLLM = (r.curLLM + 1) % len(r.availLLM)
	next := r.availLLM[r.curLLM]
	r.mu.Unlock()
	observability.ProviderRotationsTotal.WithLabelValues("llm").Inc()
	slog.Info("rotated llm backend", slog.String("provider", next.Name()), slog.String("model", next.Model()))
	r.persist()
	return next, nil
}

// ReportTTSFailure rotates to the next speech backend and returns it.
func (r *Registry) ReportTTSFailure() (domain.TTSProvider, error) {
	r.mu.Lock()
	if len(r.availTTS) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("op=provider.ReportTTSFailure: %w", domain.ErrNoProvider)
	}
	if len(r.availTTS) == 1 {
		r.mu.Unlock()
		return nil, fmt.Errorf("op=provider.ReportTTSFailure: %w", domain.ErrNoFallback)
	}
	r.curTTS = (r.curTTS + 1) % len(r.availTTS)
	next := r.availTTS[r.curTTS]
	r.mu.Unlock()
	observability.ProviderRotationsTotal.WithLabelValues("tts").Inc()
	slog.Info("rotated tts backend", slog.String("provider", next.Name()), slog.String("voice", next.Voice()))
	r.persist()
	return next, nil
}

// State is the observability snapshot written to the state file and
// served by the health endpoints.
type State struct {
	ProbedAt   time.Time `json:"probed_at"`
	LLM        []string  `json:"available_llm"`
	TTS        []string  `json:"available_tts"`
	CurrentLLM string    `json:"current_llm,omitempty"`
	CurrentTTS string    `json:"current_tts,omitempty"`
}

// Snapshot returns the current registry state.
func (r *Registry) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := State{ProbedAt: r.lastProbe}
	for _, p := range r.availLLM {
		st.LLM = append(st.LLM, p.Name()+"/"+p.Model())
	}
	for _, p := range r.availTTS {
		st.TTS = append(st.TTS, p.Name()+"/"+p.Voice())
	}
	if len(r.availLLM) > 0 {
		st.CurrentLLM = r.availLLM[r.curLLM].Name()
	}
	if len(r.availTTS) > 0 {
		st.CurrentTTS = r.availTTS[r.curTTS].Name()
	}
	return st
}

// persist writes the snapshot for observability. Authoritative state
// lives in memory; a write failure is only logged.
func (r *Registry) persist() {
	if r.statePath == "" {
		return
	}
	raw, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return
	}
	if err := renameio.WriteFile(r.statePath, raw, 0o644); err != nil {
		slog.Warn("provider state write failed", slog.String("file", r.statePath), slog.Any("error", err))
	}
}
