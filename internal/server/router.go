package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/terraconstructs/idmgr/internal/services/identity"
	"github.com/terraconstructs/idmgr/internal/telemetry"
)

// RouterOptions controls the construction of the admin API router.
// Service is required; every other field is optional.
type RouterOptions struct {
	Service       identity.Service
	Logger        *zap.Logger
	Metrics       *telemetry.ServerMetrics
	CORSOptions   *cors.Options
	LocalhostOnly bool
	// AccessLog enables chi's request logger.
	AccessLog     bool
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy for the admin console.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         300,
	}
}

// CORSOptionsFor returns the default policy with the given origins, or the
// default policy unchanged when origins is empty.
func CORSOptionsFor(origins []string) cors.Options {
	opts := DefaultCORSOptions()
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
	}
	return opts
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router with shared middleware, the CORS policy
// and the admin API mounted under /api.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	handlers, err := NewHandlers(opts.Service, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	if opts.LocalhostOnly {
		r.Use(LocalhostOnly)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	handlers.Mount(r)

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/health", health)

	return r, nil
}

// NewH2CHandler wraps the router so it also accepts HTTP/2 over cleartext.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
