package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthChecker interface {
	Healthy() bool
}

const (
	depHealthy   = "healthy"
	depDegraded  = "degraded"
	depUnhealthy = "unhealthy"
)

// health reports per-dependency status for the relational store, broker,
// container runtime, LLM credential presence, and cache. The cache and the
// LLM credential both have a graceful fallback elsewhere in the stack (the
// store falls back to Postgres on a cache miss, handlers run on a stub
// client when no provider is configured) so their absence is degraded,
// never unhealthy;
// overall status is the worst dependency status observed.
func (s *Server) health(c *gin.Context) {
	dbHealth := s.deps.Store.Health(c.Request.Context())

	broker := depHealthy
	if hc, ok := s.deps.Publisher.(healthChecker); ok && !hc.Healthy() {
		broker = depUnhealthy
	}

	cache := depHealthy
	if !dbHealth.CacheOK {
		cache = depDegraded
	}

	containerRuntime := depHealthy
	sandboxStatus := s.deps.Sandbox.Status(c.Request.Context())
	if !sandboxStatus.ContainerRuntimeOK {
		containerRuntime = depUnhealthy
	}

	llmStatus := depHealthy
	if !s.deps.LLMConfigured {
		llmStatus = depDegraded
	}

	database := depHealthy
	if !dbHealth.DatabaseOK {
		database = depUnhealthy
	}

	overall := depHealthy
	httpStatus := http.StatusOK
	for _, dep := range []string{database, broker, containerRuntime, llmStatus, cache} {
		if dep == depUnhealthy {
			overall = depUnhealthy
			httpStatus = http.StatusServiceUnavailable
			break
		}
		if dep == depDegraded {
			overall = depDegraded
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":            overall,
		"database":          database,
		"cache":             cache,
		"broker":            broker,
		"container_runtime": containerRuntime,
		"llm":               llmStatus,
	})
}
