package router

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	// Context bounds background work started by middleware, such as the
	// rate limiter's idle-bucket sweep. Defaults to context.Background.
	Context context.Context

	Logger             *logging.Logger
	Scheduling         *handlers.SchedulingHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// APIJWTSecret enables bearer auth on /v1 when set.
	APIJWTSecret string

	// RateLimitRPS enables per-client rate limiting on /v1 when positive.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	scheduling := cfg.Scheduling.Routes()

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: routeMethods(scheduling),
		}))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Scheduling.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimitRPS > 0 {
			v1.Use(httpmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if cfg.APIJWTSecret != "" {
			v1.Use(httpmiddleware.APIJWT(cfg.APIJWTSecret))
		}
		v1.Mount("/", scheduling)
	})

	return r
}

// routeMethods lists the methods served by routes, sorted, so CORS preflights
// track the mounted surface.
func routeMethods(routes chi.Routes) []string {
	seen := map[string]struct{}{}
	_ = chi.Walk(routes, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		seen[method] = struct{}{}
		return nil
	})
	methods := make([]string, 0, len(seen))
	for m := range seen {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
