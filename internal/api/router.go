// Package api serves the fleet REST endpoints with gin and mounts the live
// channel, health and metrics handlers next to them.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/madiyar29925/UavHealthTracker12/internal/service"
)

// Options are the handlers mounted beside the REST routes. Nil handlers
// leave their route unregistered.
type Options struct {
	Live    http.Handler
	Metrics http.Handler
	Logger  *slog.Logger
	// ServiceName enables otelgin tracing when non-empty
	ServiceName string
}

// Server holds the REST handlers.
type Server struct {
	fleet  *service.Fleet
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(f *service.Fleet, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{fleet: f, logger: logger.With("component", "api")}

	r := gin.New()
	r.Use(gin.Recovery(), observe(s.logger))
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}

	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Live != nil {
		r.GET("/ws", gin.WrapH(opts.Live))
	}

	s.register(r.Group("/api"))
	return r
}

func (s *Server) register(rg *gin.RouterGroup) {
	uavs := rg.Group("/uavs")
	uavs.GET("", s.listUAVs)
	uavs.GET("/:id", s.getUAV)
	uavs.PATCH("/:id", s.updateUAV)
	uavs.DELETE("/:id", s.deleteUAV)
	uavs.GET("/:id/telemetry", s.uavTelemetry)
	uavs.GET("/:id/components", s.uavComponents)
	uavs.GET("/:id/alerts", s.uavAlerts)
	uavs.GET("/:id/maintenance", s.uavMaintenance)

	rg.PATCH("/components/:id", s.updateComponent)

	rg.GET("/alerts", s.listAlerts)
	rg.PATCH("/alerts/:id", s.updateAlert)

	rg.GET("/dashboard/stats", s.dashboardStats)

	rg.POST("/simulate/telemetry", s.simulateTelemetry)
	rg.POST("/simulate/alert", s.simulateAlert)

	m := rg.Group("/maintenance")
	m.GET("", s.listMaintenance)
	m.GET("/upcoming", s.upcomingMaintenance)
	m.POST("", s.createMaintenance)
	m.PATCH("/:id", s.updateMaintenance)
	m.POST("/:id/complete", s.completeMaintenance)
	m.DELETE("/:id", s.deleteMaintenance)
}
