package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiostudio/conductor/internal/catalog"
	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/domain"
)

func newTestStore(t *testing.T) *pipeline.Store {
	t.Helper()
	return pipeline.NewStore(catalog.Builtin(), "Test pipeline")
}

func TestAddModuleUnknownDefinition(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddModule("does-not-exist", domain.Position{})
	require.ErrorIs(t, err, pipeline.ErrDefinitionNotFound)
	assert.Empty(t, store.Snapshot().Pipeline.Modules)
}

func TestAddModuleAppliesDefaults(t *testing.T) {
	store := newTestStore(t)

	id, err := store.AddModule("file-input", domain.Position{X: 10, Y: 20})
	require.NoError(t, err)

	snap := store.Snapshot()
	m := snap.Pipeline.Module(id)
	require.NotNil(t, m)
	assert.Equal(t, "file-input", m.DefinitionID)
	assert.Equal(t, domain.ModuleTypeInput, m.Type)
	assert.Equal(t, domain.ModuleStatusIdle, m.Status)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, m.Position)
	assert.Equal(t, "16000", m.Parameters["sampleRate"])
	assert.Equal(t, 1, m.Parameters["channels"])
}

func TestRemoveModuleCascadesConnections(t *testing.T) {
	store := newTestStore(t)

	source, err := store.AddModule("file-input", domain.Position{})
	require.NoError(t, err)
	target, err := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, err)
	store.AddConnection(source, "audio", target, "audio")
	store.SelectModule(source)

	store.RemoveModule(source)

	snap := store.Snapshot()
	assert.Len(t, snap.Pipeline.Modules, 1)
	assert.Empty(t, snap.Pipeline.Connections, "connections touching the removed module must go with it")
	assert.Empty(t, snap.SelectedModuleID, "selection of the removed module must clear")
}

func TestRemoveUnknownModuleIsNoop(t *testing.T) {
	store := newTestStore(t)
	id, err := store.AddModule("file-input", domain.Position{})
	require.NoError(t, err)

	store.RemoveModule("nope")

	snap := store.Snapshot()
	require.Len(t, snap.Pipeline.Modules, 1)
	assert.Equal(t, id, snap.Pipeline.Modules[0].ID)
}

func TestUpdateModuleParametersMerges(t *testing.T) {
	store := newTestStore(t)
	id, err := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, err)

	require.NoError(t, store.UpdateModuleParameters(id, map[string]interface{}{
		"numSpeakers": 4,
		"custom":      "kept",
	}))

	m := store.Snapshot().Pipeline.Module(id)
	require.NotNil(t, m)
	assert.Equal(t, 4, m.Parameters["numSpeakers"])
	assert.Equal(t, "kept", m.Parameters["custom"])
	assert.Equal(t, "precision-2", m.Parameters["model"], "untouched defaults survive the merge")

	err = store.UpdateModuleParameters("nope", map[string]interface{}{"x": 1})
	assert.ErrorIs(t, err, pipeline.ErrModuleNotFound)
}

func TestRemoveConnectionIdempotent(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.AddModule("file-input", domain.Position{})
	b, _ := store.AddModule("json-output", domain.Position{})
	connID := store.AddConnection(a, "audio", b, "segments")

	store.RemoveConnection(connID)
	store.RemoveConnection(connID)

	assert.Empty(t, store.Snapshot().Pipeline.Connections)
}

func TestProgressClamped(t *testing.T) {
	store := newTestStore(t)
	id, err := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, err)
	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))

	store.SetProgress([]string{id}, 150)
	snap := store.Snapshot()
	assert.Equal(t, 100, snap.Progress[id])
	require.NotNil(t, snap.Pipeline.Module(id).Progress)
	assert.Equal(t, 100, *snap.Pipeline.Module(id).Progress)

	store.SetProgress([]string{id}, -5)
	assert.Equal(t, 0, store.Snapshot().Progress[id])
}

func TestExecutionGate(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "first"}))
	assert.True(t, store.Snapshot().IsExecuting)

	err := store.BeginExecution(domain.ExecutionLogEntry{Message: "second"})
	assert.ErrorIs(t, err, pipeline.ErrRunInProgress)

	store.Teardown()
	snap := store.Snapshot()
	assert.False(t, snap.IsExecuting)
	assert.Empty(t, snap.Progress)

	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "third"}))
}

func TestBeginExecutionResetsRunState(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.AddModule("diar-pyannote", domain.Position{})

	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "run 1"}))
	store.SetModuleStatus([]string{id}, domain.ModuleStatusError, "boom")
	store.SetProgress([]string{id}, 60)
	store.AppendLog(domain.ExecutionLogEntry{Message: "noise"})
	store.Teardown()

	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "run 2"}))
	snap := store.Snapshot()
	assert.Equal(t, domain.PhaseValidating, snap.Phase)
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, "run 2", snap.Logs[0].Message)
	m := snap.Pipeline.Module(id)
	assert.Equal(t, domain.ModuleStatusIdle, m.Status)
	assert.Empty(t, m.Error)
	assert.Nil(t, m.Progress)
	assert.Equal(t, 0, snap.Progress[id])
}

func TestFailExecutionPipelineWide(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.AddModule("file-input", domain.Position{})
	b, _ := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))

	store.FailExecution(pipeline.FailureModePipelineWide, "", "upload failed")

	snap := store.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	for _, id := range []string{a, b} {
		m := snap.Pipeline.Module(id)
		assert.Equal(t, domain.ModuleStatusError, m.Status)
		assert.Equal(t, "upload failed", m.Error)
	}
}

func TestFailExecutionPerModule(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.AddModule("file-input", domain.Position{})
	b, _ := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))

	store.FailExecution(pipeline.FailureModePerModule, b, "job failed")

	snap := store.Snapshot()
	assert.Equal(t, domain.ModuleStatusIdle, snap.Pipeline.Module(a).Status)
	assert.Equal(t, domain.ModuleStatusError, snap.Pipeline.Module(b).Status)
	assert.Equal(t, "job failed", snap.Pipeline.Module(b).Error)
}

func TestFailExecutionPerModuleUnknownIDFallsBack(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.AddModule("file-input", domain.Position{})
	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))

	store.FailExecution(pipeline.FailureModePerModule, "gone", "late failure")

	m := store.Snapshot().Pipeline.Module(a)
	assert.Equal(t, domain.ModuleStatusError, m.Status)
}

func TestStopExecutionResetsEverything(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.AddModule("diar-pyannote", domain.Position{})
	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))
	store.SetPhase(domain.PhaseProcessing)
	store.SetProgress([]string{id}, 60)
	store.SetExecutionState(&domain.ExecutionState{ExecutionID: "exec-1"})

	store.StopExecution()

	snap := store.Snapshot()
	assert.False(t, snap.IsExecuting)
	assert.Equal(t, domain.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Progress)
	assert.Nil(t, snap.Execution)
	m := snap.Pipeline.Module(id)
	assert.Equal(t, domain.ModuleStatusIdle, m.Status)
	assert.Nil(t, m.Progress)
}

func TestSetResultFansOutPerModule(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.AddModule("diar-pyannote", domain.Position{})
	b, _ := store.AddModule("json-output", domain.Position{})

	store.SetResult(domain.DiarizationResult{
		Status:       "completed",
		SpeakerCount: 3,
		SegmentCount: 42,
	}, []string{a, b})

	snap := store.Snapshot()
	require.Len(t, snap.Results, 2)
	assert.Equal(t, a, snap.Results[a].ModuleID)
	assert.Equal(t, b, snap.Results[b].ModuleID)
	assert.Equal(t, 3, snap.Results[b].SpeakerCount)
}

func TestSnapshotIsolation(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.AddModule("diar-pyannote", domain.Position{})

	snap := store.Snapshot()
	snap.Pipeline.Module(id).Parameters["model"] = "tampered"
	snap.Progress[id] = 99

	fresh := store.Snapshot()
	assert.Equal(t, "precision-2", fresh.Pipeline.Module(id).Parameters["model"])
	assert.NotContains(t, fresh.Progress, id)
}

func TestSubscriberSeesEveryTransition(t *testing.T) {
	store := newTestStore(t)

	var seen []domain.ExecutionPhase
	store.Subscribe(func(s pipeline.State) {
		seen = append(seen, s.Phase)
	})

	require.NoError(t, store.BeginExecution(domain.ExecutionLogEntry{Message: "start"}))
	store.SetPhase(domain.PhaseUploading)
	store.SetPhase(domain.PhaseProcessing)

	require.Len(t, seen, 3)
	assert.Equal(t, domain.PhaseValidating, seen[0])
	assert.Equal(t, domain.PhaseUploading, seen[1])
	assert.Equal(t, domain.PhaseProcessing, seen[2])
}
