package app

import (
	"github.com/gin-gonic/gin"

	"github.com/fundtracer/fundtracer-backend/internal/http"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSAllowOrigins,
		RequestTimeout: cfg.RequestTimeout,

		AuthMiddleware: middleware.Auth,

		DonationHandler: handlers.Donation,
		CampaignHandler: handlers.Campaign,
		AdminHandler:    handlers.Admin,
		HealthHandler:   handlers.Health,
	})
}
