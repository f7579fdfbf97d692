package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/rtdcs/internal/api/middleware"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
)

// NewRouter wires the diagnostics routes.
func NewRouter(h *Handlers, metrics *monitoring.Metrics, development bool) *gin.Engine {
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", h.Health)
	router.GET("/state", h.State)
	router.GET("/stats", h.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return router
}
