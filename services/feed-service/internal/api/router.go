package api

import (
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/api/middleware"
	_ "github.com/athebyme/gomarket-platform/services/feed-service/internal/docs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig настройки HTTP-слоя
type RouterConfig struct {
	CORSAllowOrigins []string
	// RateLimit запросов в минуту с одного IP, 0 отключает ограничение
	RateLimit        int
	RequestTimeout   time.Duration
	// ReadinessChecks зависимости, которые пингует /ready
	ReadinessChecks  map[string]interfaces.StoragePort
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	feedService services.FeedServiceInterface,
	tenantConfigs handlers.TenantConfigurator,
	logger interfaces.LoggerPort,
	cfg RouterConfig,
) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.CORS(cfg.CORSAllowOrigins))
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimiter(cfg.RateLimit, time.Minute))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Get("/ready", handlers.NewHealthHandler(cfg.ReadinessChecks, logger).Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	feedHandler := handlers.NewFeedHandler(feedService, logger)
	tenantHandler := handlers.NewTenantHandler(tenantConfigs, logger)

	// Публичная выдача фида
	r.Get("/feed", feedHandler.GetFeedByToken)
	r.Get("/feed/{tenantID}", feedHandler.GetFeed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/feed/sweep", feedHandler.SweepFeeds)
		r.Get("/jobs/{jobID}", feedHandler.GetJob)

		r.Route("/tenants/{tenantID}/feed", func(r chi.Router) {
			r.Post("/rebuild", feedHandler.RebuildFeed)
			r.Get("/location", feedHandler.GetFeedLocation)
			r.Get("/config", tenantHandler.GetConfig)
			r.Put("/config", tenantHandler.UpdateConfig)
		})
	})

	return r
}
