package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/health"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/observability/metrics"
	"github.com/nimburion/taskdesk/pkg/version"
)

// ManagementServer serves operational endpoints on a separate port:
//   - /health: liveness, always 200
//   - /ready: readiness, 503 when a registered check is unhealthy
//   - /metrics: Prometheus exposition
//   - /version: build metadata
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
	info            version.Info
}

// NewManagementServer builds the management server. A nil registry disables the matching endpoint.
func NewManagementServer(
	cfg config.ManagementConfig,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	info version.Info,
	log logger.Logger,
) *ManagementServer {
	if log == nil {
		log = logger.Nop()
	}

	engine := newEngine()
	engine.Use(RequestID(), AccessLog(log), Recovery(log))

	s := &ManagementServer{
		Server: NewServer("management", Config{
			Port:         cfg.Port,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, engine, log),
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		info:            info,
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/version", s.handleVersion)
	if healthRegistry != nil {
		engine.GET("/ready", s.handleReady)
	}
	if metricsRegistry != nil {
		engine.GET("/metrics", gin.WrapH(metricsRegistry.Handler()))
	}
	return s
}

func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
}

func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.healthRegistry.Check(c.Request.Context())
	if result.Status == health.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.info)
}
