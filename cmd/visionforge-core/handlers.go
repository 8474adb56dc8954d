package main

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visionforge/core/pkg/config"
	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/corestate"
	"github.com/visionforge/core/pkg/models"
	"github.com/visionforge/core/pkg/pipeline"
	"github.com/visionforge/core/pkg/queue"
)

// statusForErr maps the core's error taxonomy onto HTTP status codes.
func statusForErr(err error) int {
	switch {
	case corerr.Is(err, corerr.KindNotFound):
		return http.StatusNotFound
	case corerr.Is(err, corerr.KindNotPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// server bundles the dependencies the route handlers close over.
type server struct {
	manager *queue.Manager
	engine  *pipeline.Engine
	state   *corestate.State
}

func stagesEnabledFrom(cfg *config.Config) pipeline.StagesEnabled {
	return pipeline.StagesEnabled{
		Ideator:        cfg.StageEnabled(models.StageIdeator),
		Composer:       cfg.StageEnabled(models.StageComposer),
		Judge:          cfg.StageEnabled(models.StageJudge),
		PromptEngineer: cfg.StageEnabled(models.StagePromptEngineer),
		Reviewer:       cfg.StageEnabled(models.StageReviewer),
	}
}

func modelsUsedFrom(cfg *config.Config) pipeline.ModelsUsed {
	return pipeline.ModelsUsed{
		Ideator:        cfg.StageModel(models.StageIdeator),
		Composer:       cfg.StageModel(models.StageComposer),
		Judge:          cfg.StageModel(models.StageJudge),
		PromptEngineer: cfg.StageModel(models.StagePromptEngineer),
		Reviewer:       cfg.StageModel(models.StageReviewer),
	}
}

func (s *server) registerRoutes(router *gin.Engine) {
	router.POST("/pipeline/run", s.runPipeline)
	router.POST("/pipeline/cancel", s.cancelPipeline)

	router.POST("/jobs", s.addJob)
	router.GET("/jobs", s.listJobs)
	router.POST("/jobs/:id/cancel", s.cancelJob)
	router.POST("/jobs/:id/reorder", s.reorderJob)

	router.POST("/queue/pause", s.pauseQueue)
	router.POST("/queue/resume", s.resumeQueue)
}

type runPipelineRequest struct {
	Idea              string                    `json:"idea"`
	NumConcepts       int                       `json:"numConcepts"`
	AutoApprove       bool                      `json:"autoApprove"`
	CheckpointContext *models.CheckpointContext `json:"checkpointContext"`
}

func (s *server) runPipeline(c *gin.Context) {
	var req runPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.state.ResetPipelineCancel()
	cc := req.CheckpointContext
	if cc == nil {
		def := s.state.Config.DefaultCheckpointContext
		cc = &def
	}
	input := pipeline.Input{
		Idea:              req.Idea,
		NumConcepts:       req.NumConcepts,
		AutoApprove:       req.AutoApprove,
		CheckpointContext: cc,
	}
	result, err := s.engine.Run(c.Request.Context(), input,
		stagesEnabledFrom(s.state.Config), modelsUsedFrom(s.state.Config), s.state.PipelineCancelled)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *server) cancelPipeline(c *gin.Context) {
	s.state.CancelPipeline()
	c.Status(http.StatusNoContent)
}

type addJobRequest struct {
	Priority           models.Priority `json:"priority"`
	Positive           string          `json:"positive"`
	Negative           string          `json:"negative"`
	Settings           json.RawMessage `json:"settings"`
	PipelineLog        json.RawMessage `json:"pipelineLog"`
	OriginalIdea       string          `json:"originalIdea"`
	LinkedComparisonID string          `json:"linkedComparisonId"`
}

func (s *server) addJob(c *gin.Context) {
	var req addJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.manager.AddJob(c.Request.Context(), models.NewJobParams{
		Priority: req.Priority, Positive: req.Positive, Negative: req.Negative,
		Settings: req.Settings, PipelineLog: req.PipelineLog,
		OriginalIdea: req.OriginalIdea, LinkedComparisonID: req.LinkedComparisonID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *server) listJobs(c *gin.Context) {
	jobs, err := s.manager.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *server) cancelJob(c *gin.Context) {
	if err := s.manager.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusForErr(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	Priority models.Priority `json:"priority"`
}

func (s *server) reorderJob(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Reorder(c.Request.Context(), c.Param("id"), req.Priority); err != nil {
		c.JSON(statusForErr(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) pauseQueue(c *gin.Context) {
	s.manager.Pause()
	c.Status(http.StatusNoContent)
}

func (s *server) resumeQueue(c *gin.Context) {
	s.manager.Resume()
	c.Status(http.StatusNoContent)
}
