package pipeline

import (
	"time"

	"github.com/audiostudio/conductor/pkg/domain"
)

// Action is one tagged state transition request. Actions carry every
// input the transition needs, so reduce stays a pure function: id
// allocation and catalog lookups happen in the Store methods before
// dispatch.
type Action interface {
	isAction()
}

// FailureMode selects how a run failure is projected onto module
// statuses.
type FailureMode string

const (
	// FailureModePipelineWide marks every module error on any failure.
	FailureModePipelineWide FailureMode = "pipeline-wide"
	// FailureModePerModule marks only the failing module (or all, when
	// no module is attributed).
	FailureModePerModule FailureMode = "per-module"
)

type actionAddModule struct {
	InstanceID string
	Definition domain.ModuleDefinition
	Position   domain.Position
	Now        time.Time
}

type actionRemoveModule struct {
	ModuleID string
	Now      time.Time
}

type actionUpdatePosition struct {
	ModuleID string
	Position domain.Position
}

type actionUpdateParameters struct {
	ModuleID string
	Patch    map[string]interface{}
	Now      time.Time
}

type actionAddConnection struct {
	Connection domain.Connection
	Now        time.Time
}

type actionRemoveConnection struct {
	ConnectionID string
	Now          time.Time
}

type actionSelectModule struct {
	ModuleID string
}

type actionSetPipeline struct {
	Pipeline domain.Pipeline
}

// actionExecutionStarted is the per-run reset: progress zeroed for all
// modules, statuses idle, previous run's log discarded, gate raised.
type actionExecutionStarted struct {
	Entry domain.ExecutionLogEntry
}

type actionSetPhase struct {
	Phase domain.ExecutionPhase
}

type actionAppendLog struct {
	Entry domain.ExecutionLogEntry
}

type actionClearLogs struct{}

type actionSetModuleStatus struct {
	ModuleIDs []string
	Status    domain.ModuleStatus
	Error     string
}

type actionSetProgress struct {
	ModuleIDs []string
	Value     int
}

type actionSetResult struct {
	ModuleIDs []string
	Result    domain.DiarizationResult
}

type actionSetExecutionState struct {
	Execution *domain.ExecutionState
}

type actionExecutionCompleted struct {
	ModuleIDs     []string
	SelectModule  string
	ExecutionTime float64
}

type actionExecutionFailed struct {
	Mode     FailureMode
	ModuleID string
	Message  string
}

// actionTeardown clears the gate and the progress map after the
// post-run grace delay.
type actionTeardown struct{}

// actionStopExecution resets all observable run state.
type actionStopExecution struct{}

func (actionAddModule) isAction()          {}
func (actionRemoveModule) isAction()       {}
func (actionUpdatePosition) isAction()     {}
func (actionUpdateParameters) isAction()   {}
func (actionAddConnection) isAction()      {}
func (actionRemoveConnection) isAction()   {}
func (actionSelectModule) isAction()       {}
func (actionSetPipeline) isAction()        {}
func (actionExecutionStarted) isAction()   {}
func (actionSetPhase) isAction()           {}
func (actionAppendLog) isAction()          {}
func (actionClearLogs) isAction()          {}
func (actionSetModuleStatus) isAction()    {}
func (actionSetProgress) isAction()        {}
func (actionSetResult) isAction()          {}
func (actionSetExecutionState) isAction()  {}
func (actionExecutionCompleted) isAction() {}
func (actionExecutionFailed) isAction()    {}
func (actionTeardown) isAction()           {}
func (actionStopExecution) isAction()      {}
