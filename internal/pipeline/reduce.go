package pipeline

import (
	"github.com/audiostudio/conductor/pkg/domain"
)

// reduce applies one action to a snapshot and returns the next
// snapshot. It never mutates its input.
func reduce(s State, action Action) State {
	next := s.Clone()

	switch a := action.(type) {
	case actionAddModule:
		instance := domain.ModuleInstance{
			ID:           a.InstanceID,
			DefinitionID: a.Definition.ID,
			Name:         a.Definition.Name,
			Type:         a.Definition.Type,
			Position:     a.Position,
			Parameters:   a.Definition.DefaultParameters(),
			Status:       domain.ModuleStatusIdle,
		}
		next.Pipeline.Modules = append(next.Pipeline.Modules, instance)
		next.Pipeline.UpdatedAt = a.Now

	case actionRemoveModule:
		modules := next.Pipeline.Modules[:0]
		removed := false
		for _, m := range next.Pipeline.Modules {
			if m.ID == a.ModuleID {
				removed = true
				continue
			}
			modules = append(modules, m)
		}
		if !removed {
			return s
		}
		next.Pipeline.Modules = modules
		// Cascade: drop every connection touching the module.
		conns := next.Pipeline.Connections[:0]
		for _, c := range next.Pipeline.Connections {
			if c.SourceID == a.ModuleID || c.TargetID == a.ModuleID {
				continue
			}
			conns = append(conns, c)
		}
		next.Pipeline.Connections = conns
		if next.SelectedModuleID == a.ModuleID {
			next.SelectedModuleID = ""
		}
		next.Pipeline.UpdatedAt = a.Now

	case actionUpdatePosition:
		m := next.Pipeline.Module(a.ModuleID)
		if m == nil {
			return s
		}
		m.Position = a.Position

	case actionUpdateParameters:
		m := next.Pipeline.Module(a.ModuleID)
		if m == nil {
			return s
		}
		// Shallow merge; unknown keys are kept and not validated here.
		for k, v := range a.Patch {
			m.Parameters[k] = v
		}
		next.Pipeline.UpdatedAt = a.Now

	case actionAddConnection:
		next.Pipeline.Connections = append(next.Pipeline.Connections, a.Connection)
		next.Pipeline.UpdatedAt = a.Now

	case actionRemoveConnection:
		conns := next.Pipeline.Connections[:0]
		removed := false
		for _, c := range next.Pipeline.Connections {
			if c.ID == a.ConnectionID {
				removed = true
				continue
			}
			conns = append(conns, c)
		}
		if !removed {
			return s
		}
		next.Pipeline.Connections = conns
		next.Pipeline.UpdatedAt = a.Now

	case actionSelectModule:
		next.SelectedModuleID = a.ModuleID

	case actionSetPipeline:
		next.Pipeline = a.Pipeline.Clone()
		next.SelectedModuleID = ""
		next.Progress = map[string]int{}
		next.Logs = nil
		next.Results = map[string]domain.DiarizationResult{}
		next.Execution = nil
		next.Phase = domain.PhaseIdle

	case actionExecutionStarted:
		next.IsExecuting = true
		next.Phase = domain.PhaseValidating
		next.Logs = []domain.ExecutionLogEntry{a.Entry}
		next.Progress = make(map[string]int, len(next.Pipeline.Modules))
		for i := range next.Pipeline.Modules {
			m := &next.Pipeline.Modules[i]
			m.Status = domain.ModuleStatusIdle
			m.Progress = nil
			m.Error = ""
			next.Progress[m.ID] = 0
		}

	case actionSetPhase:
		next.Phase = a.Phase

	case actionAppendLog:
		next.Logs = append(next.Logs, a.Entry)

	case actionClearLogs:
		next.Logs = nil

	case actionSetModuleStatus:
		for _, id := range a.ModuleIDs {
			if m := next.Pipeline.Module(id); m != nil {
				m.Status = a.Status
				m.Error = a.Error
			}
		}

	case actionSetProgress:
		v := clampProgress(a.Value)
		for _, id := range a.ModuleIDs {
			m := next.Pipeline.Module(id)
			if m == nil {
				continue
			}
			next.Progress[id] = v
			p := v
			m.Progress = &p
		}

	case actionSetResult:
		for _, id := range a.ModuleIDs {
			r := a.Result
			r.ModuleID = id
			next.Results[id] = r
		}

	case actionSetExecutionState:
		next.Execution = a.Execution

	case actionExecutionCompleted:
		next.Phase = domain.PhaseCompleted
		for _, id := range a.ModuleIDs {
			if m := next.Pipeline.Module(id); m != nil {
				m.Status = domain.ModuleStatusCompleted
				if a.ExecutionTime > 0 {
					t := a.ExecutionTime
					m.ExecutionTime = &t
				}
			}
		}
		if a.SelectModule != "" {
			next.SelectedModuleID = a.SelectModule
		}

	case actionExecutionFailed:
		next.Phase = domain.PhaseFailed
		switch a.Mode {
		case FailureModePerModule:
			if a.ModuleID != "" {
				if m := next.Pipeline.Module(a.ModuleID); m != nil {
					m.Status = domain.ModuleStatusError
					m.Error = a.Message
					break
				}
			}
			fallthrough
		default:
			for i := range next.Pipeline.Modules {
				next.Pipeline.Modules[i].Status = domain.ModuleStatusError
				next.Pipeline.Modules[i].Error = a.Message
			}
		}

	case actionTeardown:
		next.IsExecuting = false
		next.Progress = map[string]int{}
		next.Execution = nil

	case actionStopExecution:
		next.IsExecuting = false
		next.Phase = domain.PhaseIdle
		next.Progress = map[string]int{}
		next.Execution = nil
		for i := range next.Pipeline.Modules {
			m := &next.Pipeline.Modules[i]
			m.Status = domain.ModuleStatusIdle
			m.Progress = nil
			m.Error = ""
		}
	}

	return next
}
