package domain

import "time"

// ExecutionPhase names one stage of the run state machine.
type ExecutionPhase string

const (
	PhaseIdle        ExecutionPhase = "idle"
	PhaseValidating  ExecutionPhase = "validating"
	PhaseUploading   ExecutionPhase = "uploading"
	PhaseDispatching ExecutionPhase = "dispatching"
	PhaseProcessing  ExecutionPhase = "processing"
	PhaseCompleted   ExecutionPhase = "completed"
	PhaseFailed      ExecutionPhase = "failed"
)

// Terminal reports whether the phase ends a run.
func (p ExecutionPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// LogLevel classifies execution log entries.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ExecutionLogEntry is one append-only line of the per-run log. Entries
// are never mutated after creation.
type ExecutionLogEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	Level      LogLevel    `json:"level"`
	Message    string      `json:"message"`
	ModuleName string      `json:"moduleName,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ExecutionState ties one run to a persisted workflow. It exists only
// for the duration of a run backed by the persistence collaborator.
type ExecutionState struct {
	ExecutionID string `json:"executionId,omitempty"`
	AudioFileID string `json:"audioFileId,omitempty"`
}

// DiarizationResult is the remote outcome fanned out to result-bearing
// modules after a run. Latest write wins per module id.
type DiarizationResult struct {
	Status       string    `json:"status"`
	OutputURI    string    `json:"outputUri"`
	SpeakerCount int       `json:"speakerCount"`
	SegmentCount int       `json:"segmentCount"`
	ModuleID     string    `json:"moduleId"`
	Timestamp    time.Time `json:"timestamp"`
}

// SpeakerSegment is one (start, end, speaker) interval of a diarization
// labeling.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}
