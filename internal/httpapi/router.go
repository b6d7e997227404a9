// Package httpapi exposes the apply service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner starts batches. It is satisfied by *apply.Service.
type Runner interface {
	Run(ctx context.Context, flow, userID string, jobIDs []string, batchID string) (*pipeline.BatchResult, error)
	Start(ctx context.Context, flow, userID string, jobIDs []string) (string, error)
}

// ProgressReader serves the latest snapshot and the final result of a batch.
type ProgressReader interface {
	Latest(ctx context.Context, batchID string) (*pipeline.Progress, error)
	Result(ctx context.Context, batchID string) (*pipeline.BatchResult, error)
}

// ResultArchive is consulted once a result has expired from ProgressReader.
type ResultArchive interface {
	Get(ctx context.Context, batchID string) (*pipeline.BatchResult, error)
}

type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, batchID string)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Options struct {
	Runner   Runner
	Progress ProgressReader
	Archive  ResultArchive
	Stream   Streamer
	Checks   map[string]Check
	Logger   logger.Logger
	Version  string
}

type Server struct {
	opts   Options
	logger logger.Logger
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	s := &Server{opts: opts, logger: logger.ForComponent(opts.Logger, "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.requestLogger)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/speed-apply", s.speedApply)
		r.Post("/workday-apply", s.workdayApply)
		r.Route("/batches/{id}", func(r chi.Router) {
			r.Get("/progress", s.batchProgress)
			r.Get("/result", s.batchResult)
		})
	})
	r.Get("/ws/batches/{id}", s.stream)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
