package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/distriflow/distriflow/internal/observability"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the default middleware chain for the JSON API.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		FeaturePolicy:      "none",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
