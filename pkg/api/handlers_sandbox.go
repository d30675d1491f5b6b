package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type sandboxRunRequest struct {
	Workspace    map[string]string `json:"workspace" binding:"required"`
	Command      []string          `json:"command" binding:"required"`
	TimeoutSec   int               `json:"timeout_sec"`
	Env          []string          `json:"env"`
	Requirements []string          `json:"requirements"`
}

func (s *Server) sandboxRun(c *gin.Context) {
	var req sandboxRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := time.Duration(req.TimeoutSec) * time.Second
	outcome, err := s.deps.Sandbox.RunCommand(c.Request.Context(), req.Workspace, req.Command, timeout, req.Env, req.Requirements)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type sandboxPythonTestRequest struct {
	TestFiles    map[string]string `json:"test_files" binding:"required"`
	SourceFiles  map[string]string `json:"source_files"`
	Requirements []string          `json:"requirements"`
	ExtraArgs    []string          `json:"extra_args"`
}

func (s *Server) sandboxTestPython(c *gin.Context) {
	var req sandboxPythonTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := s.deps.Sandbox.RunPythonTests(c.Request.Context(), req.TestFiles, req.SourceFiles, req.Requirements, req.ExtraArgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type sandboxJavaScriptTestRequest struct {
	TestFiles       map[string]string `json:"test_files" binding:"required"`
	SourceFiles     map[string]string `json:"source_files"`
	PackageManifest string            `json:"package_manifest"`
	TestCommand     []string          `json:"test_command"`
}

func (s *Server) sandboxTestJavaScript(c *gin.Context) {
	var req sandboxJavaScriptTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := s.deps.Sandbox.RunJavaScriptTests(c.Request.Context(), req.TestFiles, req.SourceFiles, req.PackageManifest, req.TestCommand)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type sandboxLintRequest struct {
	Workspace map[string]string `json:"workspace" binding:"required"`
	Linter    string            `json:"linter" binding:"required"`
	ExtraArgs []string          `json:"extra_args"`
}

func (s *Server) sandboxLint(c *gin.Context) {
	var req sandboxLintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.deps.Sandbox.RunLinter(c.Request.Context(), req.Workspace, req.Linter, req.ExtraArgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) sandboxStatus(c *gin.Context) {
	status := s.deps.Sandbox.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"container_runtime_ok": status.ContainerRuntimeOK,
		"image_ready":          status.ImageReady,
		"limits": gin.H{
			"cpu_quota":    status.Limits.CPUQuota,
			"memory_limit": status.Limits.MemoryLimit,
		},
	})
}
