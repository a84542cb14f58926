// Package api serves stored runs over HTTP: listings, per-batch summaries,
// rendered charts and the live summary feed.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/eventpca/internal/httputil"
	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/render"
	"github.com/banshee-data/eventpca/internal/security"
	"github.com/banshee-data/eventpca/internal/series"
	"github.com/banshee-data/eventpca/internal/store"
	"github.com/banshee-data/eventpca/internal/version"
)

// Server exposes a run store and an optional live hub.
type Server struct {
	store *store.Store
	hub   *render.Hub
	chart render.ChartOptions
}

// NewServer creates a server. hub may be nil, in which case /ws is not
// mounted. chart supplies defaults for the chart endpoint.
func NewServer(st *store.Store, hub *render.Hub, chart render.ChartOptions) *Server {
	return &Server{store: st, hub: hub, chart: chart}
}

// ServeMux returns the routes. Store debug endpoints are mounted under
// /debug/ and only answer loopback or tailnet clients.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/chart", s.showChart)
	mux.HandleFunc("GET /api/runs/{id}/plot.png", s.showPlot)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.Handler())
	}
	if err := s.store.AttachAdminRoutes(mux); err != nil {
		monitoring.Logf("api: admin routes disabled: %v", err)
	}
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}

type runJSON struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	CreatedAt string `json:"created_at"`
	Batches   int    `json:"batches"`
	Samples   int    `json:"samples"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	out := make([]runJSON, len(runs))
	for i, run := range runs {
		out[i] = runJSON{
			ID:        run.ID,
			Label:     run.Label,
			CreatedAt: run.CreatedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
			Batches:   run.Batches,
			Samples:   run.Samples,
		}
	}
	httputil.WriteJSONOK(w, out)
}

// loadRun writes the error response itself and returns nil on failure.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) *series.Series {
	id := r.PathValue("id")
	sr, err := s.store.LoadRun(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		httputil.NotFound(w, "run not found")
		return nil
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return nil
	}
	return sr
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	sr := s.loadRun(w, r)
	if sr == nil {
		return
	}
	out := make([]render.Message, sr.Len())
	for i, sum := range sr.Summaries {
		m := render.SummaryMessage(i, sum)
		m.Time = sr.Times[i]
		out[i] = m
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"id":          r.PathValue("id"),
		"time_origin": sr.TimeOrigin,
		"raw_origin":  sr.RawOrigin,
		"samples":     sr.SampleCount(),
		"batches":     out,
	})
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		httputil.NotFound(w, "run not found")
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("failed to delete run: %v", err))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// showChart renders the interactive 3D chart.
// Query params:
//   - stride (optional) raw sample stride, 1..1000000
//   - vector_length (optional) axis tip length in pixels
func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	opts := s.chart
	if v := r.URL.Query().Get("stride"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1_000_000 {
			httputil.BadRequest(w, "stride must be an integer in 1..1000000")
			return
		}
		opts.Stride = n
	}
	if v := r.URL.Query().Get("vector_length"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			httputil.BadRequest(w, "vector_length must be a number")
			return
		}
		opts.VectorLength = f
	}

	sr := s.loadRun(w, r)
	if sr == nil {
		return
	}
	var buf bytes.Buffer
	if err := render.RenderHTML(sr, &buf, opts); err != nil {
		s.renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	sr := s.loadRun(w, r)
	if sr == nil {
		return
	}
	var buf bytes.Buffer
	if err := render.EncodePNG(sr, &buf); err != nil {
		s.renderError(w, err)
		return
	}
	name := security.ExportFilename(r.URL.Query().Get("label"), r.PathValue("id"), "png")
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	if errors.Is(err, render.ErrEmptySeries) {
		httputil.NotFound(w, "run has no batches")
		return
	}
	monitoring.Logf("api: render failed: %v", err)
	httputil.InternalServerError(w, fmt.Sprintf("failed to render: %v", err))
}
