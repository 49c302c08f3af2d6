package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// EventTopic is the bus topic execution events are published on.
const EventTopic = "execution.events"

// Recorder aggregates per-run progress and logs: every write lands in
// the store, is published to the event bus, and is mirrored
// fire-and-forget to the persistence collaborator. Mirror failures are
// surfaced only to the diagnostic log, never to the caller.
type Recorder struct {
	store       *pipeline.Store
	events      ports.EventBus
	persistence ports.Persistence
	metrics     ports.MetricsCollector
	logger      *zap.Logger
}

// NewRecorder creates a recorder over the store and collaborators.
func NewRecorder(
	store *pipeline.Store,
	events ports.EventBus,
	persistence ports.Persistence,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Recorder {
	return &Recorder{
		store:       store,
		events:      events,
		persistence: persistence,
		metrics:     metrics,
		logger:      logger,
	}
}

// Log appends one execution log entry and mirrors it.
func (r *Recorder) Log(ctx context.Context, level domain.LogLevel, message, moduleName string, details interface{}) {
	entry := domain.ExecutionLogEntry{
		Timestamp:  time.Now().UTC(),
		Level:      level,
		Message:    message,
		ModuleName: moduleName,
		Details:    details,
	}
	r.store.AppendLog(entry)

	snap := r.store.Snapshot()
	r.publish(ctx, ports.EventTypeLog, snap, map[string]interface{}{
		"level":      string(level),
		"message":    message,
		"moduleName": moduleName,
	})

	record := ports.LogRecord{
		WorkflowID: snap.Pipeline.ID,
		Level:      level,
		Message:    message,
		Details:    details,
		ModuleName: moduleName,
		Timestamp:  entry.Timestamp,
	}
	if snap.Execution != nil {
		record.ExecutionID = snap.Execution.ExecutionID
	}
	if err := r.persistence.SaveLog(ctx, record); err != nil {
		r.metrics.RecordPersistenceError("save_log")
		r.logger.Warn("log mirror write failed", zap.Error(err))
	}
}

// Progress overwrites the displayed progress of the given modules.
// Writes are clamped to [0,100] and never required to increase.
func (r *Recorder) Progress(ctx context.Context, moduleIDs []string, value int) {
	r.store.SetProgress(moduleIDs, value)
	r.publish(ctx, ports.EventTypeProgress, r.store.Snapshot(), map[string]interface{}{
		"moduleIds": moduleIDs,
		"value":     value,
	})
}

// publish sends one event to the bus. Bus failures are diagnostic only.
func (r *Recorder) publish(ctx context.Context, eventType ports.EventType, snap pipeline.State, data map[string]interface{}) {
	runID := ""
	if snap.Execution != nil {
		runID = snap.Execution.ExecutionID
	}
	event := ports.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := r.events.Publish(ctx, EventTopic, event); err != nil {
		r.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
