package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strconv"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/httputil"
	"github.com/banshee-data/platetemp/internal/plate"
)

// solverParams are the optional estimator overrides shared by the estimate
// and field endpoints.
type solverParams struct {
	Trials  *int     `json:"trials,omitempty"`
	Epsilon *float64 `json:"epsilon,omitempty"`
	Seed    *uint64  `json:"seed,omitempty"`
	Workers *int     `json:"workers,omitempty"`
}

// options applies p over the configured defaults and enforces the server's
// trial ceiling.
func (s *Server) options(p solverParams) (plate.Options, error) {
	opts := s.cfg.Options()
	if p.Trials != nil {
		opts.Trials = *p.Trials
	}
	if p.Epsilon != nil {
		opts.Epsilon = *p.Epsilon
	}
	if p.Seed != nil {
		opts.Seed = *p.Seed
	}
	if p.Workers != nil {
		opts.Workers = min(*p.Workers, runtime.GOMAXPROCS(0))
	}
	if err := opts.Validate(); err != nil {
		return plate.Options{}, err
	}
	if maxTrials := s.cfg.GetMaxTrials(); opts.Trials > maxTrials {
		return plate.Options{}, fmt.Errorf("%w: trials %d exceeds server limit %d", plate.ErrInvalidOptions, opts.Trials, maxTrials)
	}
	return opts, nil
}

func (s *Server) newEstimator(opts plate.Options) (*plate.Estimator, error) {
	var extra []plate.Option
	if obs := s.observer(); obs != nil {
		extra = append(extra, plate.WithObserver(obs))
	}
	return plate.NewEstimator(opts, extra...)
}

// plateRequest is a plate in a request body. Temperatures is a slice so a
// wrong count is rejected rather than zero-filled.
type plateRequest struct {
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Temperatures []float64 `json:"temperatures"`
}

// resolve returns the requested plate, or def when none was given.
func (p *plateRequest) resolve(def plate.Domain) (plate.Domain, error) {
	if p == nil {
		return def, nil
	}
	return plate.NewDomain(p.Width, p.Height, p.Temperatures)
}

type estimateRequest struct {
	Domain *plateRequest `json:"domain,omitempty"`
	Point  *plate.Point  `json:"point"`
	Save   bool          `json:"save,omitempty"`
	solverParams
}

type estimateResponse struct {
	EstimateID string       `json:"estimate_id,omitempty"`
	Domain     plate.Domain `json:"domain"`
	Epsilon    float64      `json:"epsilon"`
	plate.Estimate
}

func queryFloat(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return &v, nil
}

func queryInt(q url.Values, key string) (*int, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return &v, nil
}

func queryUint64(q url.Values, key string) (*uint64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return &v, nil
}

// getEstimate handles GET /api/estimate?x=&y=[&trials=&epsilon=&seed=]
// against the server's default plate.
func (s *Server) getEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := estimateRequest{}

	x, err := queryFloat(q, "x")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	y, err := queryFloat(q, "y")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if x == nil || y == nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "x and y are required")
		return
	}
	req.Point = &plate.Point{X: *x, Y: *y}

	if req.Trials, err = queryInt(q, "trials"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Epsilon, err = queryFloat(q, "epsilon"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Seed, err = queryUint64(q, "seed"); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.estimate(w, r, req)
}

// postEstimate handles POST /api/estimate with an estimateRequest body.
func (s *Server) postEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Point == nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "point is required")
		return
	}
	s.estimate(w, r, req)
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request, req estimateRequest) {
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
	est, err := s.newEstimator(opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := est.Estimate(r.Context(), d, *req.Point)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := estimateResponse{Domain: d, Epsilon: opts.Epsilon, Estimate: res}
	if req.Save {
		rec := &db.EstimateRecord{Domain: d, Epsilon: opts.Epsilon, Estimate: res}
		if err := s.estimates.Insert(rec); err != nil {
			s.writeError(w, r, fmt.Errorf("saving estimate: %w", err))
			return
		}
		resp.EstimateID = rec.EstimateID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// listEstimates handles GET /api/estimates[?limit=].
func (s *Server) listEstimates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n := 100
	if limit != nil {
		n = *limit
	}
	recs, err := s.estimates.List(n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*db.EstimateRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"estimates": recs})
}
