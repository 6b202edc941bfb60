// File: internal/api/router.go
// Description: Local control API. Lets a UI start, watch and steer appeal runs.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
)

// NewRouter mounts the automation routes on a fresh chi mux. The record routes
// are mounted only when records is non-nil.
func NewRouter(cfg config.APIConfig, automation schemas.Automation, records schemas.Records, logger *zap.Logger) *chi.Mux {
	h := &handlers{automation: automation, records: records, logger: logger.Named("api")}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(h.logger),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
		middleware.Timeout(timeout),
	)

	r.Route("/automation", func(r chi.Router) {
		r.Post("/start", h.start)
		r.Post("/stop", h.stop)
		r.Get("/status", h.status)
		r.Post("/continue", h.signalContinue)
	})
	r.Get("/environment", h.environment)

	if records != nil {
		r.Get("/profile", h.getProfile)
		r.Put("/profile", h.saveProfile)
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.listAssets)
			r.Post("/", h.saveAsset)
			r.Delete("/{id}", h.deleteAsset)
		})
		r.Get("/cases", h.listCases)
	}
	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("Request served.",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
