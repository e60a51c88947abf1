package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/dtroode/househelp-server/internal/api/http/handler"
	"github.com/dtroode/househelp-server/internal/api/http/middleware"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/model"
)

// requestTimeout bounds a request; attestations submit up to three ledger
// transactions through the queue.
const requestTimeout = 3 * time.Minute

// Services are the application services behind the routes.
type Services struct {
	Auth         handler.AuthService
	Catalog      handler.CatalogService
	Jobs         handler.JobsService
	Attestations handler.AttestationService
	Tokens       middleware.TokenService
}

// Options configure cross-cutting behaviour of the router.
type Options struct {
	AllowedOrigins []string
	RequireToken   bool
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	HealthChecks   map[string]handler.Pinger
	ContextManager model.ContextManager
}

// Router builds the HTTP routing tree.
type Router struct {
	services Services
	opts     Options
	logger   *logger.Logger
}

// New creates new Router instance.
func New(services Services, opts Options, logger *logger.Logger) *Router {
	return &Router{services: services, opts: opts, logger: logger}
}

// Register returns the configured handler.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger, r.opts.Metrics)
	authenticate := middleware.NewAuthenticate(r.services.Tokens, r.opts.ContextManager, r.opts.RequireToken, r.logger)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(logging.Handle)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.New(cors.Options{
		AllowedOrigins:   r.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	health := handler.NewHealth(r.opts.HealthChecks)
	mux.Get("/healthz", health.Check)
	if r.opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(r.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := handler.NewAuth(r.services.Auth, r.logger)
	catalog := handler.NewCatalog(r.services.Catalog, r.logger)
	jobs := handler.NewJobs(r.services.Jobs, r.logger)
	attestations := handler.NewAttestations(r.services.Attestations, r.opts.ContextManager, r.logger)

	mux.Route("/api", func(api chi.Router) {
		api.Use(chimw.Timeout(requestTimeout))

		api.Post("/auth/register", auth.Register)
		api.Post("/auth/login", auth.Login)

		api.Get("/employees", catalog.ListEmployees)
		api.Get("/employees/{id}", catalog.GetEmployee)
		api.Get("/employees/{id}/work-history", catalog.EmployeeWorkHistory)
		api.Get("/employees/{id}/nfts", catalog.EmployeeNFTs)
		api.Get("/employees/{id}/profile", catalog.EmployeeProfile)
		api.Get("/employers", catalog.ListEmployers)
		api.Get("/work-histories", catalog.ListWorkHistory)
		api.Get("/work-history", catalog.ListWorkHistory)
		api.Get("/attestations", catalog.ListAttestations)
		api.Get("/jobs", jobs.List)

		api.Group(func(protected chi.Router) {
			protected.Use(authenticate.Handle)
			protected.Post("/jobs", jobs.Create)
			protected.Post("/employers/{id}/create-attestation", attestations.Create)
		})
	})

	return mux
}
