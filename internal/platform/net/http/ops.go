package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ReadyFunc reports whether the process can do useful work (store reachable)
type ReadyFunc func(ctx context.Context) error

// Ops mounts /healthz, /readyz and /metrics
// ready may be nil (always ready); metrics may be nil (route omitted)
func Ops(ready ReadyFunc, metrics stdhttp.Handler) func(*chi.Mux) {
	return func(m *chi.Mux) {
		m.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
			JSON(w, stdhttp.StatusOK, Status{Status: "ok"})
		})
		m.Get("/readyz", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if ready == nil {
				JSON(w, stdhttp.StatusOK, Status{Status: "ready"})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				JSON(w, stdhttp.StatusServiceUnavailable, Status{Status: "unavailable", Error: err.Error()})
				return
			}
			JSON(w, stdhttp.StatusOK, Status{Status: "ready"})
		})
		if metrics != nil {
			m.Method(stdhttp.MethodGet, "/metrics", metrics)
		}
	}
}
