package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/unclebandit/campaign-delivery/internal/controller"
)

// Pinger is a dependency the health check probes, e.g. *sqlx.DB or a redis client wrapper.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	Checks map[string]Pinger
}

// Health reports 503 when any dependency fails its ping.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, p := range h.Checks {
		if err := p.PingContext(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	controller.WriteJSON(w, status, map[string]any{
		"success": status == http.StatusOK,
		"checks":  results,
	})
}
