// Package api exposes catalyst's REST surface: task submission/inspection,
// task event history, direct sandbox access, health, and Prometheus scrape.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timour/catalyst/pkg/handlers"
	"github.com/timour/catalyst/pkg/metrics"
	"github.com/timour/catalyst/pkg/orchestrator"
)

// Server wires the gin engine over the orchestrator and shared deps.
type Server struct {
	engine       *gin.Engine
	orchestrator *orchestrator.Orchestrator
	deps         *handlers.Deps
	metrics      *metrics.HTTPMetrics
	logger       *slog.Logger
}

// NewServer builds the gin engine and registers every route.
func NewServer(orch *orchestrator.Orchestrator, deps *handlers.Deps, m *metrics.HTTPMetrics, logger *slog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, orchestrator: orch, deps: deps, metrics: m, logger: logger}
	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Engine exposes the underlying http.Handler for the HTTP server to serve.
func (s *Server) Engine() http.Handler {
	return s.engine
}

func (s *Server) registerMiddleware() {
	s.engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.metrics != nil {
			status := fmtStatus(c.Writer.Status())
			s.metrics.RecordRequest(c.Request.Method, c.FullPath(), status, time.Since(start))
		}
	})
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.POST("/tasks", s.createTask)
		api.GET("/tasks/:id", s.getTask)
		api.GET("/logs/:task_id", s.getTaskLogs)

		api.POST("/sandbox/run", s.sandboxRun)
		api.POST("/sandbox/test/python", s.sandboxTestPython)
		api.POST("/sandbox/test/javascript", s.sandboxTestJavaScript)
		api.POST("/sandbox/lint", s.sandboxLint)
		api.GET("/sandbox/status", s.sandboxStatus)

		api.GET("/health", s.health)
	}
	s.engine.GET("/api/metrics", gin.WrapH(promhttp.Handler()))
}

func fmtStatus(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
