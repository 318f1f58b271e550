package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"runbook/internal/executor"
	"runbook/internal/logger"
	"runbook/internal/models"
	"runbook/internal/patterns"
	"runbook/internal/storage"
	"runbook/internal/workflow"
)

// Server exposes the execution core over HTTP. It only consumes the
// core; no execution logic lives here.
type Server struct {
	executor  *executor.Executor
	history   *storage.Storage
	workflows *workflow.Store
	miner     *patterns.Miner
}

func NewServer(exec *executor.Executor, history *storage.Storage, workflows *workflow.Store) *Server {
	return &Server{
		executor:  exec,
		history:   history,
		workflows: workflows,
		miner:     patterns.NewMiner(history),
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/workflows", s.listWorkflows)
		api.GET("/workflows/:name", s.getWorkflow)
		api.POST("/workflows/:name/run", s.runWorkflow)
		api.GET("/workflows/:name/stats", s.workflowStats)
		api.GET("/workflows/:name/patterns", s.workflowPatterns)
		api.POST("/run", s.runAdhoc)
		api.GET("/executions", s.listExecutions)
	}

	return r
}

func (s *Server) Serve(addr string) error {
	logger.Logger.Info().Str("addr", addr).Msg("api server listening")
	return s.Router().Run(addr)
}

func (s *Server) listWorkflows(c *gin.Context) {
	names, err := s.workflows.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": names})
}

func (s *Server) getWorkflow(c *gin.Context) {
	wf, err := s.workflows.Load(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (s *Server) runWorkflow(c *gin.Context) {
	name := c.Param("name")
	res, err := s.executor.RunWorkflow(c.Request.Context(), name)
	if err != nil {
		if res == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		// The run finished but recording it failed; surface both.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": executionJSON(res)})
		return
	}
	c.JSON(http.StatusOK, executionJSON(res))
}

type adhocRunRequest struct {
	WorkflowName   string            `json:"workflow_name" binding:"required"`
	Code           string            `json:"code" binding:"required"`
	Language       string            `json:"language" binding:"required"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	WorkingDir     string            `json:"working_dir"`
	Env            map[string]string `json:"env"`
	Requirements   []string          `json:"requirements"`
}

func (s *Server) runAdhoc(c *gin.Context) {
	var req adhocRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lang, ok := models.ParseLanguage(req.Language)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language: " + req.Language})
		return
	}

	res, err := s.executor.Run(c.Request.Context(), executor.RunRequest{
		WorkflowName: req.WorkflowName,
		Code:         req.Code,
		Language:     lang,
		Timeout:      time.Duration(req.TimeoutSeconds) * time.Second,
		WorkingDir:   req.WorkingDir,
		Env:          req.Env,
		Requirements: req.Requirements,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": executionJSON(res)})
		return
	}
	c.JSON(http.StatusOK, executionJSON(res))
}

func (s *Server) listExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	opts := storage.QueryOptions{
		WorkflowName: c.Query("workflow"),
		Limit:        limit,
	}
	if status := c.Query("status"); status != "" {
		opts.Status = models.ExecStatus(status)
	}

	results, err := s.history.QueryExecutions(opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(results))
	for _, res := range results {
		out = append(out, executionJSON(res))
	}
	c.JSON(http.StatusOK, gin.H{"executions": out})
}

func (s *Server) workflowStats(c *gin.Context) {
	stats, err := s.history.Stats(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) workflowPatterns(c *gin.Context) {
	minCount, _ := strconv.Atoi(c.DefaultQuery("min_count", "2"))

	found, err := s.miner.ForWorkflow(c.Param("name"), minCount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(found))
	for _, p := range found {
		out = append(out, gin.H{
			"pattern_type":   p.PatternType,
			"count":          p.Count,
			"last_seen":      p.LastSeen,
			"error_messages": p.ErrorMessages,
		})
	}
	c.JSON(http.StatusOK, gin.H{"patterns": out})
}

func executionJSON(res *models.ExecutionResult) gin.H {
	if res == nil {
		return nil
	}
	out := gin.H{
		"id":            res.ID,
		"execution_id":  res.ExecutionID,
		"workflow_name": res.WorkflowName,
		"status":        res.Status,
		"started_at":    res.StartedAt,
		"finished_at":   res.FinishedAt,
		"duration":      res.Duration,
		"stdout":        res.Stdout,
		"stderr":        res.Stderr,
		"error_message": res.ErrorMessage,
	}
	if res.ExitCode != nil {
		out["exit_code"] = *res.ExitCode
	}
	return out
}
