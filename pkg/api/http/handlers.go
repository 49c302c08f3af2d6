package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/application/orchestrator"
	"github.com/audiostudio/conductor/internal/history"
	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// AddModuleRequest represents a module placement request
type AddModuleRequest struct {
	DefinitionID string          `json:"definitionId" binding:"required"`
	Position     domain.Position `json:"position"`
}

// AddConnectionRequest represents a connection creation request
type AddConnectionRequest struct {
	SourceID   string `json:"sourceId" binding:"required"`
	SourcePort string `json:"sourcePort" binding:"required"`
	TargetID   string `json:"targetId" binding:"required"`
	TargetPort string `json:"targetPort" binding:"required"`
}

// SelectModuleRequest represents a selection change request
type SelectModuleRequest struct {
	ModuleID string `json:"moduleId"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	overall := "healthy"
	processing := "ok"
	status := http.StatusOK
	if s.monitor != nil && !s.monitor.IsHealthy() {
		overall = "degraded"
		processing = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"processing": processing,
		},
	})
}

// handleListCatalog returns all module definitions in palette order
func (s *Server) handleListCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"definitions": s.catalog.List()})
}

// handleGetPipeline returns the current engine snapshot
func (s *Server) handleGetPipeline(c *gin.Context) {
	snap := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"pipeline":         snap.Pipeline,
		"selectedModuleId": snap.SelectedModuleID,
		"isExecuting":      snap.IsExecuting,
		"phase":            snap.Phase,
	})
}

// handleSetPipeline replaces the whole pipeline with the posted one
func (s *Server) handleSetPipeline(c *gin.Context) {
	var p domain.Pipeline
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}

	s.store.SetPipeline(p)
	c.JSON(http.StatusOK, gin.H{"pipeline": s.store.Snapshot().Pipeline})
}

// handleAddModule places a module from the catalog onto the canvas
func (s *Server) handleAddModule(c *gin.Context) {
	var req AddModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	moduleID, err := s.store.AddModule(req.DefinitionID, req.Position)
	if err != nil {
		if errors.Is(err, pipeline.ErrDefinitionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "DEFINITION_NOT_FOUND",
					Message: err.Error(),
				},
			})
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"moduleId": moduleID})
}

// handleRemoveModule removes a module and its connections
func (s *Server) handleRemoveModule(c *gin.Context) {
	s.store.RemoveModule(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// handleUpdateParameters patches a module's parameters
func (s *Server) handleUpdateParameters(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.store.UpdateModuleParameters(c.Param("id"), patch); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "MODULE_NOT_FOUND",
				Message: err.Error(),
			},
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// handleUpdatePosition moves a module on the canvas
func (s *Server) handleUpdatePosition(c *gin.Context) {
	var position domain.Position
	if err := c.ShouldBindJSON(&position); err != nil {
		s.badRequest(c, err)
		return
	}

	s.store.UpdateModulePosition(c.Param("id"), position)
	c.Status(http.StatusNoContent)
}

// handleSelectModule changes the current selection. An empty module id
// clears it.
func (s *Server) handleSelectModule(c *gin.Context) {
	var req SelectModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	s.store.SelectModule(req.ModuleID)
	c.Status(http.StatusNoContent)
}

// handleAddConnection creates a connection between two module ports
func (s *Server) handleAddConnection(c *gin.Context) {
	var req AddConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	connectionID := s.store.AddConnection(req.SourceID, req.SourcePort, req.TargetID, req.TargetPort)
	c.JSON(http.StatusCreated, gin.H{"connectionId": connectionID})
}

// handleRemoveConnection removes a connection
func (s *Server) handleRemoveConnection(c *gin.Context) {
	s.store.RemoveConnection(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// handleValidate runs the structural validator on the current pipeline
func (s *Server) handleValidate(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.ValidatePipeline())
}

// handleExport serves the current pipeline as a JSON attachment
func (s *Server) handleExport(c *gin.Context) {
	data, err := s.store.ExportJSON()
	if err != nil {
		s.internalError(c, err)
		return
	}

	name := pipeline.ExportFilename(s.store.Snapshot().Pipeline.Name)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// handleImport replaces the current pipeline from an exported document
func (s *Server) handleImport(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.store.ImportJSON(data); err != nil {
		var importErr *pipeline.ImportError
		if errors.As(err, &importErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_DOCUMENT",
					Message: importErr.Error(),
				},
			})
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pipeline": s.store.Snapshot().Pipeline})
}

// handleExecute starts a run against the uploaded audio file. The run
// continues in the background; progress is observable on the snapshot
// endpoint and the event stream.
func (s *Server) handleExecute(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "MISSING_FILE",
				Message: "multipart field 'file' is required",
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.internalError(c, err)
		return
	}

	input := &orchestrator.InputFile{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}

	// Claim the gate on the request path so a concurrent run surfaces
	// as 409 instead of silently failing in the background. The run
	// must not ride on the request context: net/http cancels it the
	// moment the handler returns, which would abort any run that
	// outlives the accept window.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.orchestrator.ExecutePipeline(context.Background(), input)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: ErrorDetail{
					Code:    "RUN_IN_PROGRESS",
					Message: err.Error(),
				},
			})
			return
		}
		// Run finished before the handler returned; report its outcome.
		snap := s.store.Snapshot()
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"phase": snap.Phase,
				"error": err.Error(),
				"logs":  snap.Logs,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"phase":   snap.Phase,
			"results": snap.Results,
		})
	case <-time.After(100 * time.Millisecond):
		c.JSON(http.StatusAccepted, gin.H{
			"status": "running",
			"file":   fileHeader.Filename,
		})
	}
}

// handleGetExecution returns the execution view of the snapshot
func (s *Server) handleGetExecution(c *gin.Context) {
	snap := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"isExecuting": snap.IsExecuting,
		"phase":       snap.Phase,
		"progress":    snap.Progress,
		"logs":        snap.Logs,
		"results":     snap.Results,
		"execution":   snap.Execution,
	})
}

// handleStopExecution cancels the active run
func (s *Server) handleStopExecution(c *gin.Context) {
	s.orchestrator.StopExecution(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// eventReplayer is the optional replay capability of an event bus.
// The in-memory bus buffers recent events; stream-backed buses keep
// their own cursors and do not implement it.
type eventReplayer interface {
	Since(seq int64, topic string) ([]ports.Event, int64)
}

// handleListEvents returns buffered execution events after the given
// cursor, so consumers without a websocket can poll for updates
func (s *Server) handleListEvents(c *gin.Context) {
	replayer, ok := s.events.(eventReplayer)
	if !ok {
		c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error: ErrorDetail{
				Code:    "REPLAY_UNAVAILABLE",
				Message: "the configured event bus does not buffer events",
			},
		})
		return
	}

	since := int64(0)
	if v := c.Query("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.badRequest(c, fmt.Errorf("invalid since cursor %q", v))
			return
		}
		since = parsed
	}

	events, cursor := replayer.Since(since, orchestrator.EventTopic)
	if events == nil {
		events = []ports.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "cursor": cursor})
}

// handleSaveWorkflow mirrors the current pipeline to the persistence
// store and binds subsequent runs to the returned workflow id
func (s *Server) handleSaveWorkflow(c *gin.Context) {
	snap := s.store.Snapshot()

	if id := s.orchestrator.WorkflowID(); id != "" {
		if err := s.persistence.UpdateWorkflow(c.Request.Context(), id, snap.Pipeline); err != nil {
			s.persistenceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workflowId": id})
		return
	}

	id, err := s.persistence.SaveWorkflow(c.Request.Context(), snap.Pipeline)
	if err != nil {
		s.persistenceError(c, err)
		return
	}

	s.orchestrator.SetWorkflowID(id)
	c.JSON(http.StatusCreated, gin.H{"workflowId": id})
}

// handleListWorkflows lists persisted workflows
func (s *Server) handleListWorkflows(c *gin.Context) {
	workflows, err := s.persistence.ListWorkflows(c.Request.Context())
	if err != nil {
		s.persistenceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workflows": workflows, "total": len(workflows)})
}

// handleGetWorkflow returns one persisted workflow
func (s *Server) handleGetWorkflow(c *gin.Context) {
	workflow, err := s.persistence.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "WORKFLOW_NOT_FOUND",
				Message: "workflow not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, workflow)
}

// handleLoadWorkflow replaces the current pipeline with a persisted one
func (s *Server) handleLoadWorkflow(c *gin.Context) {
	id := c.Param("id")

	workflow, err := s.persistence.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "WORKFLOW_NOT_FOUND",
				Message: "workflow not found",
			},
		})
		return
	}

	s.store.SetPipeline(*workflow)
	s.orchestrator.SetWorkflowID(id)
	c.JSON(http.StatusOK, gin.H{"pipeline": s.store.Snapshot().Pipeline})
}

// handleListHistory lists completed runs of the bound workflow
func (s *Server) handleListHistory(c *gin.Context) {
	workflowID := c.Query("workflowId")
	if workflowID == "" {
		workflowID = s.orchestrator.WorkflowID()
	}

	c.JSON(http.StatusOK, gin.H{"entries": s.history.List(workflowID)})
}

// handleDiffHistory compares two history entries. With segments=true
// the full segment detail is fetched from the processing backend;
// fetch failures degrade to an empty segment list per side.
func (s *Server) handleDiffHistory(c *gin.Context) {
	entryA, err := s.history.Get(c.Query("a"))
	if err != nil {
		s.historyNotFound(c, c.Query("a"))
		return
	}
	entryB, err := s.history.Get(c.Query("b"))
	if err != nil {
		s.historyNotFound(c, c.Query("b"))
		return
	}

	cmp := history.Diff(entryA, entryB)
	if c.Query("segments") == "true" {
		history.FetchSegments(c.Request.Context(), s.processing, s.logger, &cmp, entryA, entryB)
	}

	c.JSON(http.StatusOK, cmp)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Error("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("internal error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		},
	})
}

func (s *Server) persistenceError(c *gin.Context, err error) {
	s.logger.Error("persistence error", zap.Error(err))
	c.JSON(http.StatusBadGateway, ErrorResponse{
		Error: ErrorDetail{
			Code:    "PERSISTENCE_ERROR",
			Message: err.Error(),
		},
	})
}

func (s *Server) historyNotFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error: ErrorDetail{
			Code:    "ENTRY_NOT_FOUND",
			Message: "history entry not found",
			Details: id,
		},
	})
}
