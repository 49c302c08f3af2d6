package ports

import (
	"context"
	"time"

	"github.com/audiostudio/conductor/pkg/domain"
)

// AudioFileMetadata describes one uploaded input file.
type AudioFileMetadata struct {
	Filename    string `json:"filename"`
	ResourceURI string `json:"resourceUri"`
	SizeBytes   int64  `json:"sizeBytes"`
	ContentType string `json:"contentType,omitempty"`
}

// LogRecord mirrors one execution log entry to the persistence store.
type LogRecord struct {
	WorkflowID  string          `json:"workflowId"`
	ExecutionID string          `json:"executionId,omitempty"`
	Level       domain.LogLevel `json:"level"`
	Message     string          `json:"message"`
	Details     interface{}     `json:"details,omitempty"`
	ModuleName  string          `json:"moduleName,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ResultRecord mirrors one per-module result to the persistence store.
type ResultRecord struct {
	WorkflowID   string `json:"workflowId"`
	ExecutionID  string `json:"executionId,omitempty"`
	ModuleID     string `json:"moduleId"`
	ModuleName   string `json:"moduleName"`
	Status       string `json:"status"`
	OutputURI    string `json:"outputUri,omitempty"`
	SpeakerCount *int   `json:"speakerCount,omitempty"`
	SegmentCount *int   `json:"segmentCount,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Persistence is the workflow/log/result mirror store. Every call is
// best-effort telemetry from the engine's point of view: failures are
// logged by the caller and never abort a run.
type Persistence interface {
	SaveWorkflow(ctx context.Context, pipeline domain.Pipeline) (string, error)
	UpdateWorkflow(ctx context.Context, id string, pipeline domain.Pipeline) error
	GetWorkflow(ctx context.Context, id string) (*domain.Pipeline, error)
	ListWorkflows(ctx context.Context) ([]domain.Pipeline, error)

	StartExecution(ctx context.Context, workflowID, audioFileID string, metadata map[string]interface{}) (string, error)
	CompleteExecution(ctx context.Context, executionID, status, errorMessage string) error

	SaveAudioFileMetadata(ctx context.Context, meta AudioFileMetadata) (string, error)
	SaveLog(ctx context.Context, record LogRecord) error
	SaveResult(ctx context.Context, record ResultRecord) error
}
