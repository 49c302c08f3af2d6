// Package memory implements the persistence gateway with in-memory
// maps. This is for tests and demo mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// executionRecord is one bookkeeping row for a run.
type executionRecord struct {
	ID           string
	WorkflowID   string
	AudioFileID  string
	Status       string
	ErrorMessage string
}

// Gateway is an in-memory ports.Persistence implementation.
type Gateway struct {
	mu         sync.RWMutex
	workflows  map[string]domain.Pipeline
	order      []string
	executions map[string]*executionRecord
	audioFiles map[string]ports.AudioFileMetadata
	logs       []ports.LogRecord
	results    []ports.ResultRecord

	// Err makes every call fail; used to test best-effort semantics.
	Err error
}

var _ ports.Persistence = (*Gateway)(nil)

// NewGateway creates an empty in-memory gateway.
func NewGateway() *Gateway {
	return &Gateway{
		workflows:  make(map[string]domain.Pipeline),
		executions: make(map[string]*executionRecord),
		audioFiles: make(map[string]ports.AudioFileMetadata),
	}
}

func (g *Gateway) SaveWorkflow(ctx context.Context, pipeline domain.Pipeline) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := pipeline.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := g.workflows[id]; !exists {
		g.order = append(g.order, id)
	}
	g.workflows[id] = pipeline.Clone()
	return id, nil
}

func (g *Gateway) UpdateWorkflow(ctx context.Context, id string, pipeline domain.Pipeline) error {
	if g.Err != nil {
		return g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.workflows[id]; !ok {
		return fmt.Errorf("workflow not found: %s", id)
	}
	g.workflows[id] = pipeline.Clone()
	return nil
}

func (g *Gateway) GetWorkflow(ctx context.Context, id string) (*domain.Pipeline, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	pipeline, ok := g.workflows[id]
	if !ok {
		return nil, nil
	}
	out := pipeline.Clone()
	return &out, nil
}

func (g *Gateway) ListWorkflows(ctx context.Context) ([]domain.Pipeline, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.Pipeline, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.workflows[id].Clone())
	}
	return out, nil
}

func (g *Gateway) StartExecution(ctx context.Context, workflowID, audioFileID string, metadata map[string]interface{}) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.NewString()
	g.executions[id] = &executionRecord{
		ID:          id,
		WorkflowID:  workflowID,
		AudioFileID: audioFileID,
		Status:      "running",
	}
	return id, nil
}

func (g *Gateway) CompleteExecution(ctx context.Context, executionID, status, errorMessage string) error {
	if g.Err != nil {
		return g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.executions[executionID]
	if !ok {
		return fmt.Errorf("execution not found: %s", executionID)
	}
	record.Status = status
	record.ErrorMessage = errorMessage
	return nil
}

func (g *Gateway) SaveAudioFileMetadata(ctx context.Context, meta ports.AudioFileMetadata) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.NewString()
	g.audioFiles[id] = meta
	return id, nil
}

func (g *Gateway) SaveLog(ctx context.Context, record ports.LogRecord) error {
	if g.Err != nil {
		return g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logs = append(g.logs, record)
	return nil
}

func (g *Gateway) SaveResult(ctx context.Context, record ports.ResultRecord) error {
	if g.Err != nil {
		return g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = append(g.results, record)
	return nil
}

// Logs returns a copy of the mirrored log records.
func (g *Gateway) Logs() []ports.LogRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ports.LogRecord, len(g.logs))
	copy(out, g.logs)
	return out
}

// Results returns a copy of the mirrored result records.
func (g *Gateway) Results() []ports.ResultRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ports.ResultRecord, len(g.results))
	copy(out, g.results)
	return out
}

// ExecutionStatus returns the recorded status of an execution.
func (g *Gateway) ExecutionStatus(executionID string) (status, errorMessage string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, found := g.executions[executionID]
	if !found {
		return "", "", false
	}
	return record.Status, record.ErrorMessage, true
}
