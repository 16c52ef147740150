package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/field"
	"github.com/banshee-data/platetemp/internal/httputil"
	"github.com/banshee-data/platetemp/internal/render"
	"github.com/banshee-data/platetemp/internal/runs"
	"github.com/banshee-data/platetemp/internal/security"
)

type fieldRequest struct {
	Label  string        `json:"label,omitempty"`
	Domain *plateRequest `json:"domain,omitempty"`
	// Step spaces an inclusive grid over the plate. Xs and Ys, when given,
	// replace it with explicit axes ("min:max:step" or "a,b,c").
	Step         *float64 `json:"step,omitempty"`
	Xs           string   `json:"xs,omitempty"`
	Ys           string   `json:"ys,omitempty"`
	FieldWorkers *int     `json:"field_workers,omitempty"`
	solverParams
}

type runFieldResponse struct {
	Run     *db.Run       `json:"run"`
	Summary field.Summary `json:"summary"`
	Field   *field.Field  `json:"field"`
}

// postField handles POST /api/fields. The sweep runs for the lifetime of
// the request and the stored run is returned with status 201.
func (s *Server) postField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := req.Domain.resolve(s.domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.options(req.solverParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		g    field.Grid
		step float64
	)
	switch {
	case req.Xs != "" || req.Ys != "":
		if req.Xs == "" || req.Ys == "" {
			httputil.WriteJSONError(w, http.StatusBadRequest, "xs and ys must be given together")
			return
		}
		g, err = field.GridFromSpecs(d, req.Xs, req.Ys)
	default:
		step = s.cfg.GetGridStep()
		if req.Step != nil {
			step = *req.Step
		}
		g, err = field.NewGrid(d, step)
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if g.Points() > maxGridPoints {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("grid has %d points, limit is %d", g.Points(), maxGridPoints))
		return
	}

	workers := s.sweepWorkers(req.FieldWorkers)
	run, _, err := s.sweeps.Run(r.Context(), runs.Request{
		Label:    req.Label,
		Domain:   d,
		Options:  opts,
		Grid:     g,
		GridStep: step,
		Workers:  workers,
	})
	if err != nil {
		if run != nil {
			s.logger.Warn("sweep did not complete", "run", run.RunID, "status", run.Status)
		}
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, run)
}

// sweepWorkers resolves the number of grid points estimated concurrently
// for one request: the configured value or the request's override, clamped
// to [1, GOMAXPROCS].
func (s *Server) sweepWorkers(requested *int) int {
	workers := s.cfg.GetFieldWorkers()
	if requested != nil {
		workers = *requested
	}
	return min(max(workers, 1), runtime.GOMAXPROCS(0))
}

// listRuns handles GET /api/runs[?limit=].
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n := 100
	if limit != nil {
		n = *limit
	}
	list, err := s.runs.ListRuns(n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*db.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"runs": list})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.DeleteRun(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadRunField fetches a completed run together with its field.
func (s *Server) loadRunField(r *http.Request) (*db.Run, *field.Field, error) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.runs.LoadField(id)
	if err != nil {
		return nil, nil, err
	}
	return run, f, nil
}

// getRunField handles GET /api/runs/{id}/field. ?format=csv returns one row
// per grid point instead of JSON.
func (s *Server) getRunField(w http.ResponseWriter, r *http.Request) {
	run, f, err := s.loadRunField(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		var buf bytes.Buffer
		if err := f.WriteCSV(&buf); err != nil {
			s.writeError(w, r, err)
			return
		}
		name := run.RunID
		if run.Label != "" {
			name = run.Label
		}
		httputil.WriteAttachment(w, "text/csv", security.SanitizeFilename(name)+".csv", buf.Bytes())
	case "", "json":
		sum, err := f.Summary()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, runFieldResponse{Run: run, Summary: sum, Field: f})
	default:
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func runTitle(run *db.Run) string {
	if run.Label != "" {
		return run.Label
	}
	return "Run " + run.RunID
}

// getRunSurface handles GET /runs/{id}/surface.
func (s *Server) getRunSurface(w http.ResponseWriter, r *http.Request) {
	run, f, err := s.loadRunField(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render.SurfaceHTML(&buf, f, render.SurfaceOptions{
		Title:      runTitle(run),
		AssetsHost: r.URL.Query().Get("assets"),
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// getRunHeatMap handles GET /runs/{id}/heatmap.png.
func (s *Server) getRunHeatMap(w http.ResponseWriter, r *http.Request) {
	run, f, err := s.loadRunField(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render.HeatMapPNG(&buf, f, render.HeatMapOptions{Title: runTitle(run)}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
