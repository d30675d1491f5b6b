package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// createTaskRequest is the body of POST /api/tasks.
type createTaskRequest struct {
	Description string `json:"description" binding:"required"`
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.orchestrator.ExecuteTask(c.Request.Context(), req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Trace-Id", task.TraceID)
	c.JSON(http.StatusAccepted, task)
}

func (s *Server) getTask(c *gin.Context) {
	id := c.Param("id")

	task, err := s.deps.Store.GetTask(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Trace-Id", task.TraceID)
	c.JSON(http.StatusOK, task)
}

func (s *Server) getTaskLogs(c *gin.Context) {
	taskID := c.Param("task_id")

	events, err := s.deps.Store.LoadTaskHistory(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "events": events})
}
