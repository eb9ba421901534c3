package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"landledger/internal/cache"
	applog "landledger/internal/log"
	"landledger/internal/middleware/ratelimit"
	"landledger/internal/middleware/security"
	"landledger/internal/middleware/trace"
	"landledger/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API serves. Dashboard may be nil, in which case
// aggregates are computed on every request.
type Deps struct {
	Agreements *services.AgreementService
	Auth       *services.AuthService
	Dashboard  *cache.JSONCache
	Store      Pinger
}

// Options tune the transport around the handlers.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	TrustedProxies     []string
	MaxUploadBytes     int64
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	agreements *services.AgreementService
	auth       *services.AuthService
	dashboard  *cache.JSONCache
	store      Pinger

	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	maxUploadBytes  int64
	startedAt       time.Time

	shutdownOnce sync.Once
}

// NewServer builds the API server listening on addr.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		agreements:     deps.Agreements,
		auth:           deps.Auth,
		dashboard:      deps.Dashboard,
		store:          deps.Store,
		detector:       security.NewDetector(),
		maxUploadBytes: opts.MaxUploadBytes,
		startedAt:      time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			opts.Logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	s.traceMiddleware = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		TooManyRequestsError().Write(w)
	})(handler)
	handler = s.detector.Middleware(s.detector.ExtractClientIP)(handler)
	handler = security.CORS(security.DefaultCORSConfig(opts.CORSOrigins))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/{$}", s.handleRoot)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/forgot-password", s.handleForgotPassword)

	mux.Handle("GET /api/agreements", s.requireUser(s.handleListAgreements))
	mux.Handle("POST /api/agreements", s.requireUser(s.handleCreateAgreement))
	mux.Handle("GET /api/agreements/table", s.requireUser(s.handleAgreementTable))
	mux.Handle("GET /api/agreements/{id}", s.requireUser(s.handleGetAgreement))
	mux.Handle("PUT /api/agreements/{id}", s.requireUser(s.handleUpdateAgreement))
	mux.Handle("DELETE /api/agreements/{id}", s.requireUser(s.handleDeleteAgreement))

	mux.Handle("GET /api/dashboard/summary", s.requireUser(s.handleSummary))
	mux.Handle("GET /api/dashboard/charts", s.requireUser(s.handleCharts))

	mux.Handle("GET /api/export/agreements.xlsx", s.requireUser(s.handleExport))
	mux.Handle("POST /api/import/agreements", s.requireUser(s.handleImport))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("Not Found").Write(w)
	})
}

// Shutdown stops the server and its background goroutines. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
