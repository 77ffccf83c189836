package usecase

import (
	"time"

	"github.com/fairyhunter13/ghostradio/internal/adapter/catalog"
	"github.com/fairyhunter13/ghostradio/internal/adapter/provider"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Health reports liveness details: uptime, worker activity, queue depths,
// catalog totals and the provider registry snapshot.
type Health struct {
	startedAt     time.Time
	workerRunning func() bool
	queue         domain.QueueStore
	catalog       *catalog.Catalog
	registry      *provider.Registry
}

// NewHealth constructs the health service. workerRunning reports whether
// a drain pass is active; it must be a pure read, never something that
// contends for the worker's single-flight lock.
func NewHealth(workerRunning func() bool, queue domain.QueueStore, cat *catalog.Catalog, reg *provider.Registry) *Health {
	return &Health{
		startedAt:     time.Now(),
		workerRunning: workerRunning,
		queue:         queue,
		catalog:       cat,
		registry:      reg,
	}
}

// QueueDepths is the pending/processed/failed breakdown.
type QueueDepths struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Snapshot is the health endpoint payload.
type Snapshot struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	WorkerRunning bool           `json:"worker_running"`
	Queue         QueueDepths    `json:"queue"`
	Users         int            `json:"users"`
	Episodes      int            `json:"episodes"`
	Providers     provider.State `json:"providers"`
}

// Check assembles the current snapshot. Individual probe failures degrade
// the payload rather than failing the endpoint.
func (h *Health) Check(ctx domain.Context) Snapshot {
	snap := Snapshot{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
	if h.registry != nil {
		snap.Providers = h.registry.Snapshot()
	}

	if h.workerRunning != nil {
		snap.WorkerRunning = h.workerRunning()
	}

	if h.queue != nil {
		if pending, processed, failed, err := h.queue.Depths(ctx); err == nil {
			snap.Queue = QueueDepths{Pending: pending, Processed: processed, Failed: failed}
		} else {
			snap.Status = "degraded"
		}
	}
	if h.catalog != nil {
		if users, err := h.catalog.Users(ctx); err == nil {
			snap.Users = len(users)
			for _, u := range users {
				if eps, err := h.catalog.List(ctx, u); err == nil {
					snap.Episodes += len(eps)
				}
			}
		}
	}
	return snap
}
