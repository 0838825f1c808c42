// Package api exposes partner searches over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/partner-finder/internal/catalog"
	"github.com/sells-group/partner-finder/internal/discovery"
	"github.com/sells-group/partner-finder/internal/metrics"
	"github.com/sells-group/partner-finder/internal/model"
)

const defaultJobTTL = time.Hour

// Searcher runs one partner search.
type Searcher interface {
	Search(ctx context.Context, req discovery.Request, progress discovery.Progress) (*discovery.Result, error)
}

// Describer attaches AI descriptions to candidates.
type Describer interface {
	DescribeAll(ctx context.Context, cands []model.BusinessCandidate) ([]model.BusinessCandidate, error)
}

// Server holds the API dependencies.
type Server struct {
	searcher  Searcher
	describer Describer
	catalog   *catalog.Catalog
	jobs      *JobStore
	origins   []string
	baseCtx   context.Context
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDescriber enables description generation. Without it /api/describe
// answers 503 and the describe flag of a search is ignored.
func WithDescriber(d Describer) Option {
	return func(s *Server) { s.describer = d }
}

// WithCatalog replaces the embedded category catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithJobTTL sets how long finished jobs stay queryable.
func WithJobTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.jobs = NewJobStore(ttl)
		}
	}
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithBaseContext sets the parent context of asynchronous jobs. Canceling
// it stops every running job.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.baseCtx = ctx }
}

// NewServer creates a Server around searcher.
func NewServer(searcher Searcher, opts ...Option) *Server {
	s := &Server{
		searcher: searcher,
		catalog:  catalog.MustDefault(),
		jobs:     NewJobStore(defaultJobTTL),
		origins:  []string{"*"},
		baseCtx:  context.Background(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Jobs returns the job store.
func (s *Server) Jobs() *JobStore { return s.jobs }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Post("/search", s.handleSearch)
		r.Post("/describe", s.handleDescribe)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Delete("/jobs/{id}", s.handleCancelJob)
		r.Get("/jobs/{id}/export", s.handleExport)
	})
	return r
}

// instrument counts requests by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}
