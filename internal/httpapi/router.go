// Package httpapi — служебный HTTP: метрики, health, live-feed дашборда и выгрузки.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/auth"
	"github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/realtime"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

// Options — зависимости роутера. Nil-зависимость отключает соответствующие маршруты.
type Options struct {
	Logger      *log.Entry
	Health      *health.Handler
	Hub         *realtime.Hub
	Dashboard   *dashboard.Service
	Auth        *auth.Authenticator
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewRouter собирает chi-роутер служебного HTTP.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "http")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Health == nil {
		opts.Health = health.NewHandler(version.GetVersion())
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Handle("/healthz", opts.Health)
	r.Get("/livez", health.LivenessHandler)
	r.Get("/version", version.Handler)

	r.Group(func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		if opts.Hub != nil {
			hub := opts.Hub
			r.Get("/ws/orders", func(w http.ResponseWriter, req *http.Request) {
				realtime.ServeWS(hub, realtime.RoomOrders, w, req)
			})
		}
		if opts.Dashboard != nil {
			exports := &exportHandler{svc: opts.Dashboard, logger: opts.Logger}
			r.Get("/exports", exports.list)
			r.Get("/exports/*", exports.download)
		}
	})

	return r
}

func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("http request failed")
				return
			}
			entry.Debug("http request")
		})
	}
}
