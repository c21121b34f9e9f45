package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ledger/internal/cache"
	applog "ledger/internal/log"
	"ledger/internal/middleware/auth"
	"ledger/internal/middleware/cors"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// Options configures the API server. Zero values select defaults.
type Options struct {
	Addr                 string
	RequestTimeout       time.Duration
	JWTSecret            string
	CORSAllowedOrigins   []string
	RateLimitPerMinute   int
	CacheCleanupInterval time.Duration
	Logger               *applog.Logger
}

// Server serves the ledger JSON API.
type Server struct {
	http.Server

	svc            *services.LedgerService
	requestTimeout time.Duration
	logger         *applog.Logger
	events         *applog.StructuredLogger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	verifier         *auth.Verifier
	cacheManager     *cache.Manager

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// appMetrics counts ledger writes served by this process.
type appMetrics struct {
	uptime          time.Time
	entriesIngested int64
	daysReplaced    int64
	recordsDeleted  int64
}

func (m *appMetrics) add(counter *int64, n int) {
	atomic.AddInt64(counter, int64(n))
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// The month cache of svc, when enabled, is cleaned periodically until
// Shutdown.
func NewServer(svc *services.LedgerService, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.CacheCleanupInterval <= 0 {
		opts.CacheCleanupInterval = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       opts.RequestTimeout + 5*time.Second,
			WriteTimeout:      opts.RequestTimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:              svc,
		requestTimeout:   opts.RequestTimeout,
		logger:           logger,
		events:           applog.NewStructuredLogger(logger),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		verifier:     auth.NewVerifier(opts.JWTSecret),
		cacheManager: cache.NewManager(),
		appMetrics:   &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.events)

	if mc := svc.MonthCache(); mc != nil {
		s.cacheManager.Register(mc)
		s.cacheManager.StartCleanup(opts.CacheCleanupInterval)
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/expenses", s.handleIngest)
	api.HandleFunc("GET /api/expenses", s.handleMonth)
	api.HandleFunc("GET /api/expenses/range", s.handleRange)
	api.HandleFunc("GET /api/expenses/day/{date}", s.handleDay)
	api.HandleFunc("PUT /api/expenses/day/{date}", s.handleReplaceDay)
	api.HandleFunc("GET /api/expenses/summary/category", s.handleCategorySummary)
	api.HandleFunc("DELETE /api/expenses/{id}", s.handleDelete)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", s.verifier.Middleware(s.withTimeout(api)))
	mux.HandleFunc("/", s.handleNotFound)

	limitMW := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	corsMW := cors.New(cors.DefaultConfig(opts.CORSAllowedOrigins))

	// Outermost first: trace, request logger, detection, headers, CORS,
	// rate limit.
	var handler http.Handler = mux
	handler = limitMW(handler)
	handler = corsMW.Handler(handler)
	handler = headersMW.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

// withTimeout bounds every API request, and so every storage call it
// makes, by the configured request timeout.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later").Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, "not_found", "no route for "+r.URL.Path).Write(w)
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
