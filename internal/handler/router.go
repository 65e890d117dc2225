package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hrms-lite/hrms/internal/httpmiddleware"
	"github.com/hrms-lite/hrms/internal/metrics"
)

// RouterConfig holds the cross-cutting pieces mounted around the routes.
type RouterConfig struct {
	CORSOrigins []string
	Limiter     httpmiddleware.Limiter // optional
	Metrics     *metrics.Metrics       // optional
	MetricsView http.Handler           // served at /metrics when set
}

// NewRouter registers every route on a fresh engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.GinMiddleware())
	}

	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	if cfg.MetricsView != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsView))
	}

	api := r.Group("/api")
	if cfg.Limiter != nil {
		api.Use(httpmiddleware.RateLimit(cfg.Limiter))
	}
	{
		api.POST("/employees", h.CreateEmployee)
		api.GET("/employees", h.ListEmployees)
		api.GET("/employees/:employee_id", h.GetEmployee)
		api.PUT("/employees/:employee_id", h.UpdateEmployee)
		api.DELETE("/employees/:employee_id", h.DeleteEmployee)

		api.POST("/attendance", h.MarkAttendance)
		api.GET("/attendance/:employee_id", h.ListAttendance)

		// Kept out of the /employees/:employee_id and /attendance/:employee_id
		// namespaces so every employee id stays addressable.
		api.GET("/export/employees", h.ExportEmployees)
		api.GET("/attendance-summary", h.AttendanceSummary)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
