// Package api serves estimates, field sweeps and stored runs over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/banshee-data/platetemp/internal/config"
	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/httputil"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/runs"
	"github.com/banshee-data/platetemp/internal/timeutil"
	"github.com/banshee-data/platetemp/internal/version"
)

// StatusClientClosedRequest is logged when the client goes away before an
// estimate finishes. Nothing is written to the connection in that case.
const StatusClientClosedRequest = 499

// maxGridPoints bounds the size of a sweep requested over HTTP.
const maxGridPoints = 250000

// errBadRequest marks malformed parameters and bodies.
var errBadRequest = errors.New("bad request")

// ServerConfig holds the dependencies of a Server. Config and DB are
// required.
type ServerConfig struct {
	Config  *config.SolverConfig
	DB      *db.DB
	Metrics *monitoring.Metrics
	Logger  *charmlog.Logger
	Clock   timeutil.Clock
}

type Server struct {
	cfg       *config.SolverConfig
	domain    plate.Domain
	runs      *db.RunStore
	estimates *db.EstimateStore
	sweeps    *runs.Service
	metrics   *monitoring.Metrics
	logger    *charmlog.Logger
}

// NewServer validates the default plate from sc.Config and returns a Server.
func NewServer(sc ServerConfig) (*Server, error) {
	if sc.Config == nil || sc.DB == nil {
		return nil, errors.New("api: config and database are required")
	}
	d, err := sc.Config.Domain()
	if err != nil {
		return nil, fmt.Errorf("default plate: %w", err)
	}
	logger := sc.Logger
	if logger == nil {
		logger = charmlog.Default()
	}
	s := &Server{
		cfg:       sc.Config,
		domain:    d,
		runs:      db.NewRunStore(sc.DB.DB, sc.Clock),
		estimates: db.NewEstimateStore(sc.DB.DB, sc.Clock),
		metrics:   sc.Metrics,
		logger:    logger,
	}
	s.sweeps = runs.NewService(s.runs, s.observer(), sc.Clock)
	return s, nil
}

// observer returns the metrics as a plate.Observer, or nil without
// leaving a typed nil in the interface.
func (s *Server) observer() plate.Observer {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(logger *charmlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{w, http.StatusOK}
			next.ServeHTTP(lrw, r)
			status := lrw.statusCode
			if r.Context().Err() != nil {
				status = StatusClientClosedRequest
			}
			fields := []interface{}{
				"method", r.Method,
				"uri", r.RequestURI,
				"status", status,
				"ms", float64(time.Since(start).Nanoseconds()) / 1e6,
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

// Routes returns the HTTP handler for the API and the rendered pages.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/estimate", s.getEstimate)
		r.Post("/estimate", s.postEstimate)
		r.Get("/estimates", s.listEstimates)
		r.Post("/fields", s.postField)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Delete("/runs/{id}", s.deleteRun)
		r.Get("/runs/{id}/field", s.getRunField)
		r.Get("/version", s.getVersion)
	})
	r.Get("/runs/{id}/surface", s.getRunSurface)
	r.Get("/runs/{id}/heatmap.png", s.getRunHeatMap)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// statusForError maps domain and storage errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, plate.ErrInvalidDomain),
		errors.Is(err, plate.ErrInvalidQueryPoint),
		errors.Is(err, plate.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrRunIncomplete):
		return http.StatusConflict
	case errors.Is(err, plate.ErrCancelled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the mapped status. Cancelled
// requests are only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == StatusClientClosedRequest {
		s.logger.Warn("client went away", "uri", r.RequestURI, "err", err)
		return
	}
	if status >= 500 {
		s.logger.Error("request failed", "uri", r.RequestURI, "err", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}
