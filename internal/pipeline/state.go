package pipeline

import (
	"github.com/audiostudio/conductor/pkg/domain"
)

// State is one immutable snapshot of the pipeline engine. Every
// dispatch replaces the whole snapshot; subscribers never observe a
// partial update.
//
// After a successful run, Results is guaranteed to hold one entry per
// diarization-capable module id and per output-typed module id of the
// participant set captured at validation time.
type State struct {
	Pipeline         domain.Pipeline
	SelectedModuleID string

	// IsExecuting is the single concurrency gate: while true, no second
	// run may start.
	IsExecuting bool
	Phase       domain.ExecutionPhase

	Progress  map[string]int
	Logs      []domain.ExecutionLogEntry
	Results   map[string]domain.DiarizationResult
	Execution *domain.ExecutionState
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Pipeline = s.Pipeline.Clone()
	out.Progress = make(map[string]int, len(s.Progress))
	for k, v := range s.Progress {
		out.Progress[k] = v
	}
	out.Logs = make([]domain.ExecutionLogEntry, len(s.Logs))
	copy(out.Logs, s.Logs)
	out.Results = make(map[string]domain.DiarizationResult, len(s.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	if s.Execution != nil {
		exec := *s.Execution
		out.Execution = &exec
	}
	return out
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
