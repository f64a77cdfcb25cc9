// Package http provides http transport for ingest triggers and table reads
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"awardarchive/internal/modkit/httpkit"
	"awardarchive/internal/services/api/ingest/domain"
	svc "awardarchive/internal/services/api/ingest/service"
)

// Register mounts ingest endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	// trigger pipelines
	httpkit.PostJSON[domain.SeatsRunInput](r, "/seats", h.runSeats)
	httpkit.PostJSON[domain.IPreferRunInput](r, "/iprefer", h.runIPrefer)

	// run bookkeeping
	httpkit.Get(r, "/runs", h.recentRuns)

	// table snapshots
	httpkit.Get(r, "/tables/{name}", h.table)
	httpkit.Get(r, "/tables/{name}/preview", h.preview)
}

type handlers struct{ svc svc.Service }

func (h *handlers) runSeats(r *stdhttp.Request, in domain.SeatsRunInput) (any, error) {
	return h.svc.RunSeats(r.Context(), in)
}

func (h *handlers) runIPrefer(r *stdhttp.Request, in domain.IPreferRunInput) (any, error) {
	return h.svc.RunIPrefer(r.Context(), in)
}

func (h *handlers) recentRuns(r *stdhttp.Request) (any, error) {
	return h.svc.RecentRuns(r.Context(), queryInt(r, "limit", 20))
}

func (h *handlers) table(r *stdhttp.Request) (any, error) {
	return h.svc.Table(r.Context(), chi.URLParam(r, "name"))
}

func (h *handlers) preview(r *stdhttp.Request) (any, error) {
	return h.svc.Preview(r.Context(), chi.URLParam(r, "name"), queryInt(r, "limit", 100))
}

// queryInt parses an int query param, falling back to def when absent or bad
func queryInt(r *stdhttp.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
