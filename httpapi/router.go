// Package httpapi exposes the admin endpoints for bulk membership import,
// plus health and metrics endpoints for infrastructure.
package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boa-portal/membership-sync/importer"
)

// DefaultMaxUploadBytes bounds the spreadsheet upload when Deps.MaxUploadBytes is zero.
const DefaultMaxUploadBytes int64 = 10 << 20

// Importer runs a bulk import over an uploaded workbook.
type Importer interface {
	BulkImport(ctx context.Context, data []byte) (*importer.ImportResult, error)
}

// Pinger reports database reachability and pool usage for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

type healthBody struct {
	Status string    `json:"status"`
	Pool   *poolBody `json:"pool,omitempty"`
}

type poolBody struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// Deps are the router's collaborators. Gatherer and Pinger are optional.
type Deps struct {
	Importer       Importer
	Pinger         Pinger
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// NewRouter constructs the HTTP router.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/admin/memberships/import", func(r chi.Router) {
		r.Post("/", h.importMemberships)
		r.Get("/template", h.template)
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok"}
	if h.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Pinger.Ping(ctx); err != nil {
			h.deps.Logger.WarnContext(ctx, "httpapi: health check failed", "error", err)
			writeError(w, r, http.StatusServiceUnavailable, "db_unavailable", "database is not reachable")
			return
		}
		st := h.deps.Pinger.Stats()
		body.Pool = &poolBody{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	writeJSON(w, http.StatusOK, apiResponse{Data: body})
}
