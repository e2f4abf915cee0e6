package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/fundtracer/fundtracer-backend/internal/http/handlers"
	httpMW "github.com/fundtracer/fundtracer-backend/internal/http/middleware"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	RequestTimeout time.Duration

	AuthMiddleware *httpMW.AuthMiddleware

	DonationHandler *httpH.DonationHandler
	CampaignHandler *httpH.CampaignHandler
	AdminHandler    *httpH.AdminHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.AttachRequestContext(cfg.RequestTimeout))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Public campaign views
	if cfg.DonationHandler != nil {
		api.GET("/campaigns/:id/donations", cfg.DonationHandler.ListByCampaign)
	}
	if cfg.CampaignHandler != nil {
		api.GET("/campaigns/:id/ledger", cfg.CampaignHandler.Ledger)
	}

	if cfg.AuthMiddleware == nil {
		return r
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		// Donations
		if cfg.DonationHandler != nil {
			protected.POST("/donations", cfg.DonationHandler.Create)
			protected.GET("/donations/my-donations", cfg.DonationHandler.ListMine)
			protected.GET("/donations/summary", cfg.DonationHandler.Summary)
			protected.GET("/donations/:id", cfg.DonationHandler.Get)
			protected.GET("/donations/:id/transitions", cfg.DonationHandler.History)
			protected.PUT("/donations/:id/status", cfg.DonationHandler.UpdateStatus)
		}
	}

	admin := api.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireRole("admin"))
	{
		if cfg.AdminHandler != nil {
			admin.GET("/stats", cfg.AdminHandler.Stats)
			admin.GET("/donations", cfg.AdminHandler.ListDonations)
			admin.PUT("/donations/:id/approve", cfg.AdminHandler.Approve)
			admin.PUT("/donations/:id/reject", cfg.AdminHandler.Reject)
			admin.PUT("/donations/:id/refund", cfg.AdminHandler.Refund)
		}
		if cfg.CampaignHandler != nil {
			admin.POST("/campaigns", cfg.CampaignHandler.Register)
			admin.DELETE("/campaigns/:id", cfg.CampaignHandler.Delete)
			admin.POST("/campaigns/:id/reconcile", cfg.CampaignHandler.Reconcile)
			admin.GET("/campaigns/:id/verify", cfg.CampaignHandler.Verify)
		}
	}

	return r
}
