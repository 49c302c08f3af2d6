// Package pipeline implements the graph model of the engine as an
// action-dispatch store: every mutation is a tagged Action reduced by a
// pure transition function into a fresh immutable State snapshot, and
// subscribers are notified after each transition.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// ErrDefinitionNotFound is returned by AddModule when the definition id
// does not resolve in the catalog.
var ErrDefinitionNotFound = errors.New("module definition not found")

// ErrModuleNotFound is returned by targeted updates for unknown ids.
var ErrModuleNotFound = errors.New("module not found")

// Subscriber receives the snapshot produced by each dispatch.
type Subscriber func(State)

// Store is the single source of truth for the current pipeline and its
// execution state. All access goes through Dispatch under one mutex;
// readers get deep-copied snapshots.
type Store struct {
	mu          sync.RWMutex
	state       State
	catalog     ports.ModuleCatalog
	subscribers []Subscriber

	now func() time.Time
}

// NewStore creates a store holding one empty current pipeline.
func NewStore(catalog ports.ModuleCatalog, name string) *Store {
	now := time.Now().UTC()
	return &Store{
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
		state: State{
			Pipeline: domain.Pipeline{
				ID:        uuid.NewString(),
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			},
			Phase:    domain.PhaseIdle,
			Progress: map[string]int{},
			Results:  map[string]domain.DiarizationResult{},
		},
	}
}

// Subscribe registers a subscriber called after every transition with
// the new snapshot. Subscribers run synchronously on the dispatching
// goroutine and must not dispatch back into the store.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// dispatch reduces the action and notifies subscribers.
func (s *Store) dispatch(action Action) State {
	s.mu.Lock()
	s.state = reduce(s.state, action)
	snapshot := s.state.Clone()
	subscribers := make([]Subscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
	return snapshot
}

// AddModule places a new instance of a catalog definition. Unknown
// definition ids are surfaced, not swallowed.
func (s *Store) AddModule(definitionID string, position domain.Position) (string, error) {
	def, ok := s.catalog.Lookup(definitionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, definitionID)
	}
	id := uuid.NewString()
	s.dispatch(actionAddModule{
		InstanceID: id,
		Definition: def,
		Position:   position,
		Now:        s.now(),
	})
	return id, nil
}

// RemoveModule removes an instance and cascades removal of every
// connection touching it. Removing an unknown id is a no-op.
func (s *Store) RemoveModule(moduleID string) {
	s.dispatch(actionRemoveModule{ModuleID: moduleID, Now: s.now()})
}

// UpdateModulePosition moves a module on the canvas.
func (s *Store) UpdateModulePosition(moduleID string, position domain.Position) {
	s.dispatch(actionUpdatePosition{ModuleID: moduleID, Position: position})
}

// UpdateModuleParameters shallow-merges the patch into the instance's
// parameter map. Unknown keys are preserved, not schema-checked.
func (s *Store) UpdateModuleParameters(moduleID string, patch map[string]interface{}) error {
	s.mu.RLock()
	exists := s.state.Pipeline.Module(moduleID) != nil
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	s.dispatch(actionUpdateParameters{ModuleID: moduleID, Patch: patch, Now: s.now()})
	return nil
}

// AddConnection assigns a fresh id and appends the edge. Port existence
// and type compatibility are left to the validator.
func (s *Store) AddConnection(sourceID, sourcePort, targetID, targetPort string) string {
	conn := domain.Connection{
		ID:         uuid.NewString(),
		SourceID:   sourceID,
		SourcePort: sourcePort,
		TargetID:   targetID,
		TargetPort: targetPort,
	}
	s.dispatch(actionAddConnection{Connection: conn, Now: s.now()})
	return conn.ID
}

// RemoveConnection removes an edge by id, idempotently.
func (s *Store) RemoveConnection(connectionID string) {
	s.dispatch(actionRemoveConnection{ConnectionID: connectionID, Now: s.now()})
}

// SelectModule marks a module as selected for inspection.
func (s *Store) SelectModule(moduleID string) {
	s.dispatch(actionSelectModule{ModuleID: moduleID})
}

// SetPipeline replaces the current pipeline, discarding all run state.
func (s *Store) SetPipeline(p domain.Pipeline) {
	s.dispatch(actionSetPipeline{Pipeline: p})
}

// BeginExecution raises the execution gate and performs the per-run
// reset. It fails if a run is already in flight.
func (s *Store) BeginExecution(entry domain.ExecutionLogEntry) error {
	s.mu.Lock()
	if s.state.IsExecuting {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.state = reduce(s.state, actionExecutionStarted{Entry: entry})
	snapshot := s.state.Clone()
	subscribers := make([]Subscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
	return nil
}

// ErrRunInProgress is returned when a second execution is started while
// one is active.
var ErrRunInProgress = errors.New("execution already in progress")

// SetPhase records the current phase of the run state machine.
func (s *Store) SetPhase(phase domain.ExecutionPhase) {
	s.dispatch(actionSetPhase{Phase: phase})
}

// AppendLog appends one entry to the per-run execution log.
func (s *Store) AppendLog(entry domain.ExecutionLogEntry) {
	s.dispatch(actionAppendLog{Entry: entry})
}

// ClearExecutionLogs truncates the execution log.
func (s *Store) ClearExecutionLogs() {
	s.dispatch(actionClearLogs{})
}

// SetModuleStatus writes a status (and optional error message) to the
// given modules.
func (s *Store) SetModuleStatus(moduleIDs []string, status domain.ModuleStatus, errMsg string) {
	s.dispatch(actionSetModuleStatus{ModuleIDs: moduleIDs, Status: status, Error: errMsg})
}

// SetProgress overwrites the progress of the given modules, clamped to
// [0,100]. Writes are idempotent and need not increase monotonically.
func (s *Store) SetProgress(moduleIDs []string, value int) {
	s.dispatch(actionSetProgress{ModuleIDs: moduleIDs, Value: value})
}

// SetResult fans the same result out under every given module id.
func (s *Store) SetResult(result domain.DiarizationResult, moduleIDs []string) {
	s.dispatch(actionSetResult{ModuleIDs: moduleIDs, Result: result})
}

// SetExecutionState records the persistence handle for the active run.
func (s *Store) SetExecutionState(exec *domain.ExecutionState) {
	s.dispatch(actionSetExecutionState{Execution: exec})
}

// CompleteExecution marks the run's participant modules completed and
// auto-selects the first result-bearing module.
func (s *Store) CompleteExecution(moduleIDs []string, selectModule string, executionTime float64) {
	s.dispatch(actionExecutionCompleted{
		ModuleIDs:     moduleIDs,
		SelectModule:  selectModule,
		ExecutionTime: executionTime,
	})
}

// FailExecution projects a run failure onto module statuses per the
// configured failure mode.
func (s *Store) FailExecution(mode FailureMode, moduleID, message string) {
	s.dispatch(actionExecutionFailed{Mode: mode, ModuleID: moduleID, Message: message})
}

// Teardown clears the execution gate and the progress map. Called after
// the post-run grace delay.
func (s *Store) Teardown() {
	s.dispatch(actionTeardown{})
}

// StopExecution forces the gate down and resets all run-visible state.
func (s *Store) StopExecution() {
	s.dispatch(actionStopExecution{})
}
