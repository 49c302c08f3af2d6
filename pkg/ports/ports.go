// Package ports defines the contracts between the pipeline engine and
// its collaborators: the remote processing service, the persistence
// mirror, the module catalog, the event bus and the metrics collector.
//
// The engine depends only on these interfaces; concrete adapters live
// under pkg/adapters.
package ports

import (
	"context"
	"time"

	"github.com/audiostudio/conductor/pkg/domain"
)

// ModuleCatalog resolves module definitions by id.
type ModuleCatalog interface {
	// Lookup returns the definition for an id, or false if unknown.
	Lookup(id string) (domain.ModuleDefinition, bool)

	// List returns all definitions in palette order.
	List() []domain.ModuleDefinition
}

// EventType classifies engine events published to the bus.
type EventType string

const (
	EventTypeExecutionStarted   EventType = "execution.started"
	EventTypeExecutionCompleted EventType = "execution.completed"
	EventTypeExecutionFailed    EventType = "execution.failed"
	EventTypeExecutionStopped   EventType = "execution.stopped"
	EventTypeProgress           EventType = "execution.progress"
	EventTypeLog                EventType = "execution.log"
	EventTypeResult             EventType = "execution.result"
)

// Event is one engine event delivered to bus subscribers.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"runId"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler consumes one event. Returning an error only affects the
// handler itself; publication never fails because of a subscriber.
type EventHandler func(ctx context.Context, event Event) error

// EventBus distributes engine events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records engine metrics.
type MetricsCollector interface {
	RecordRunStarted()
	RecordRunCompleted(status string, duration time.Duration)
	RecordPhase(phase domain.ExecutionPhase, duration time.Duration)
	RecordPollTick()
	RecordPersistenceError(operation string)
	SetActiveRuns(n int)
}
