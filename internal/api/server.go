// Package api exposes the directory over HTTP: stateless merge and star
// previews, imports through the importer, and lookups against the store.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/company-directory/internal/importer"
	"github.com/sells-group/company-directory/internal/metrics"
	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/store"
)

// Importer is the subset of importer.Service the API calls.
type Importer interface {
	Import(ctx context.Context, incoming *model.Record) (*importer.Result, error)
	ImportAll(ctx context.Context, docs []*model.Record) ([]importer.Outcome, error)
	Stars(ctx context.Context, domain string) (*importer.StarReport, error)
}

// Deps are the collaborators the router is built from.
type Deps struct {
	Store          store.Store
	Importer       Importer
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds the handler dependencies.
type Server struct {
	store    store.Store
	importer Importer
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewRouter builds the HTTP handler for the directory API.
func NewRouter(d Deps) http.Handler {
	s := &Server{
		store:    d.Store,
		importer: d.Importer,
		metrics:  d.Metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/merge", s.handleMerge)
		r.Post("/stars", s.handleCalcStars)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.handleListCompanies)
			r.Post("/import", s.handleImport)
			r.Post("/batch", s.handleImportBatch)
			r.Get("/{domain}", s.handleGetCompany)
			r.Delete("/{domain}", s.handleDeleteCompany)
			r.Get("/{domain}/stars", s.handleCompanyStars)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
