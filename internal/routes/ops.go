package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal/handler"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/router"
)

const healthTimeout = 2 * time.Second

// RegisterOpsRoutes registers /health and, when configured, /metrics.
// The metrics endpoint is unauthenticated and should be firewalled in
// production.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", health(deps.Store))

	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}

func health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := store.Ping(ctx); err != nil {
				middleware.GetLogger(r.Context()).Error("health check failed", "error", err)
				handler.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		handler.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
