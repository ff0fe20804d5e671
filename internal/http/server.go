// Package http serves the Finwiz JSON API: account and statement CRUD,
// per-account and cross-account analytics, and the recurrence resolver.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finwiz/internal/cache"
	applog "finwiz/internal/log"
	"finwiz/internal/middleware/ratelimit"
	"finwiz/internal/middleware/security"
	"finwiz/internal/middleware/trace"
	"finwiz/internal/services"
)

const (
	defaultCacheSize = 500
	shutdownTimeout  = 10 * time.Second

	// globalCachePrefix holds cross-account analytics, cleared on any write.
	globalCachePrefix = "global:"
)

type Config struct {
	Addr               string
	CORSAllowedOrigins []string
	// RateLimitPerMinute bounds write requests per client; 0 disables it.
	RateLimitPerMinute int
	// CacheTTL of zero turns analytics caching off.
	CacheTTL  time.Duration
	CacheSize int
	// TrustedProxies extends the private ranges whose X-Forwarded-For is
	// believed when resolving the client IP.
	TrustedProxies []string
}

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the API server. Analytics responses are cached as encoded JSON
// keyed by account, so writes can drop exactly what they affect.
type Server struct {
	http.Server

	accounts   *services.AccountService
	statements *services.StatementService
	pinger     Pinger
	logger     *applog.Logger

	analyticsCache *cache.LRUCache[[]byte]
	cacheEnabled   bool
	// cacheMu orders invalidations against stores; cacheGen counts
	// invalidations so a body computed across one is not stored.
	cacheMu  sync.Mutex
	cacheGen uint64
	tracer         *trace.Middleware
	limiter        *ratelimit.Limiter
	detector       *security.Detector

	now func() time.Time
}

func NewServer(cfg Config, accounts *services.AccountService, statements *services.StatementService, pinger Pinger, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s := &Server{
		accounts:       accounts,
		statements:     statements,
		pinger:         pinger,
		logger:         logger,
		analyticsCache: cache.NewLRUCache[[]byte](cfg.CacheSize, cfg.CacheTTL),
		cacheEnabled:   cfg.CacheTTL > 0,
		tracer:         trace.NewMiddleware(detector.ExtractClientIP, logger),
		detector:       detector,
		now:            time.Now,
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(applog.Middleware(s.logger))
	r.Use(s.tracer.Middleware)
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{"Location", trace.HeaderRequestID},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	writes := s.writeLimit()
	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.With(writes).Post("/", s.handleCreateAccount)

			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", s.handleGetAccount)
				r.With(writes).Put("/", s.handleUpdateAccount)
				r.With(writes).Delete("/", s.handleDeleteAccount)

				r.Get("/statements", s.handleListStatements)
				r.With(writes).Post("/statements", s.handleCreateStatement)

				r.Get("/summary", s.handleAccountSummary)
				r.Get("/buckets", s.handleAccountBuckets)
				r.Get("/upcoming", s.handleAccountUpcoming)
			})
		})

		r.Route("/statements/{statementID}", func(r chi.Router) {
			r.Get("/", s.handleGetStatement)
			r.With(writes).Put("/", s.handleUpdateStatement)
			r.With(writes).Delete("/", s.handleDeleteStatement)
		})

		r.Get("/analytics/series", s.handleSeries)
		r.Get("/analytics/upcoming", s.handleUpcoming)
		r.Get("/recurrence/next", s.handleRecurrenceNext)
	})

	return r
}

// writeLimit rate limits mutating requests per client IP.
func (s *Server) writeLimit() func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})
}

// Cache exposes the analytics cache so a cache.Manager can sweep it.
func (s *Server) Cache() cache.Cleaner {
	return s.analyticsCache
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.limiter != nil {
		g.Go(func() error { return s.limiter.Run(gctx) })
	}
	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

func accountCachePrefix(id uuid.UUID) string {
	return "account:" + id.String() + ":"
}

// invalidate drops cached analytics for the given accounts and every
// cross-account entry.
func (s *Server) invalidate(ctx context.Context, accountIDs ...uuid.UUID) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++

	removed := s.analyticsCache.DeletePrefix(globalCachePrefix)
	for _, id := range accountIDs {
		if id != uuid.Nil {
			removed += s.analyticsCache.DeletePrefix(accountCachePrefix(id))
		}
	}
	if removed > 0 {
		applog.FromContext(ctx).DebugContext(ctx, "Analytics cache invalidated", "entries_removed", removed)
	}
}

// serveCached writes the cached body for key, or computes, caches and
// writes it. A body is only cached if no write invalidated the cache while
// it was being computed.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, compute func() (any, error)) {
	if body, ok := s.analyticsCache.Get(key); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Raw(body).Write(w)
		return
	}

	s.cacheMu.Lock()
	gen := s.cacheGen
	s.cacheMu.Unlock()

	v, err := compute()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, fmt.Errorf("encode %s: %w", key, err))
		return
	}
	if s.cacheEnabled {
		s.cacheMu.Lock()
		if s.cacheGen == gen {
			s.analyticsCache.Set(key, body)
		}
		s.cacheMu.Unlock()
	}
	NewJSONResponse().Header("X-Cache", "MISS").Raw(body).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "backend not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	tm := s.tracer.GetMetrics()
	fmt.Fprintf(&b, "finwiz_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(&b, "finwiz_http_client_errors_total %d\n", tm.ClientErrors)
	fmt.Fprintf(&b, "finwiz_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(&b, "finwiz_http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)

	cs := s.analyticsCache.Stats()
	fmt.Fprintf(&b, "finwiz_analytics_cache_entries %d\n", cs.Size)
	fmt.Fprintf(&b, "finwiz_analytics_cache_hits_total %d\n", cs.Hits)
	fmt.Fprintf(&b, "finwiz_analytics_cache_misses_total %d\n", cs.Misses)

	if s.limiter != nil {
		rm := s.limiter.GetMetrics()
		fmt.Fprintf(&b, "finwiz_ratelimit_clients %d\n", rm.ClientCount)
		fmt.Fprintf(&b, "finwiz_ratelimit_rejected_total %d\n", rm.TotalHits)
	}

	fmt.Fprintf(&b, "finwiz_suspicious_requests_total %d\n", s.detector.GetMetrics().SuspiciousRequests)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
