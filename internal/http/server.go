package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
)

// Options configure a Server. Zero values pick defaults.
type Options struct {
	Catalog        config.Catalog
	Now            func() time.Time
	Ping           func(ctx context.Context) error
	Logger         *log.Logger
	WriteLimit     int
	RequestTimeout time.Duration
}

type Server struct {
	http.Server
	svc     *services.PlanningService
	catalog config.Catalog
	now     func() time.Time
	ping    func(ctx context.Context) error

	limiter      *rateLimiter
	metrics      *securityMetrics
	shutdownOnce sync.Once
}

func NewServer(addr string, svc *services.PlanningService, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.WriteLimit <= 0 {
		opts.WriteLimit = writeLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.Catalog.Brands) == 0 {
		opts.Catalog = config.DefaultCatalog()
	}

	s := &Server{
		svc:     svc,
		catalog: opts.Catalog,
		now:     opts.Now,
		ping:    opts.Ping,
		limiter: newRateLimiter(opts.WriteLimit, opts.Now),
		metrics: &securityMetrics{},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(rejectSuspicious(s.metrics))
	r.Use(s.limiter.limitWrites(s.metrics))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/catalog", s.handleCatalog)

	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", s.handleListBudgets)
		r.Post("/", s.handleCreateBudget)
		r.Put("/{brand}/{category}/{year}", s.handleSaveBudget)
		r.Delete("/{brand}/{category}/{year}/session", s.handleCancelBudgetEdit)
	})

	r.Route("/projections", func(r chi.Router) {
		r.Get("/", s.handleListProjections)
		r.Post("/", s.handleCreateProjection)
		r.Get("/{id}", s.handleGetProjection)
		r.Put("/{id}", s.handleUpdateProjection)
		r.Delete("/{id}", s.handleDeleteProjection)
		r.Post("/{id}/approve", s.handleApproveProjection)
		r.Get("/{id}/rollup", s.handleProjectionRollup)
	})

	r.Get("/spend", s.handleSpend)

	r.Route("/variance", func(r chi.Router) {
		r.Get("/", s.handleVariance)
		r.Get("/categories", s.handleVarianceByCategory)
		r.Get("/brands", s.handleVarianceByBrand)
		r.Post("/refresh", s.handleRefreshExceeds)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// Shutdown stops the limiter cleanup and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// permitted returns the caller's brands; the catalog when no header is set.
func (s *Server) permitted(r *http.Request) []string {
	return PermittedBrands(r, s.catalog.BrandNames())
}

func (s *Server) requireBrand(r *http.Request, brand string) error {
	for _, b := range s.permitted(r) {
		if b == brand {
			return nil
		}
	}
	return errBrandNotPermitted
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
	}
	DomainError(err).Write(w)
}
