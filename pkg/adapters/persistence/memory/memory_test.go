package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

func TestWorkflowLifecycle(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	id1, err := g.SaveWorkflow(ctx, domain.Pipeline{ID: "wf-1", Name: "First"})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", id1, "a provided id is kept")

	id2, err := g.SaveWorkflow(ctx, domain.Pipeline{Name: "Second"})
	require.NoError(t, err)
	assert.NotEmpty(t, id2, "a missing id is assigned")

	list, err := g.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First", list[0].Name, "insertion order is preserved")

	require.NoError(t, g.UpdateWorkflow(ctx, id1, domain.Pipeline{ID: id1, Name: "Renamed"}))
	got, err := g.GetWorkflow(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Name)

	err = g.UpdateWorkflow(ctx, "missing", domain.Pipeline{})
	assert.Error(t, err)

	got, err = g.GetWorkflow(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExecutionBookkeeping(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	audioID, err := g.SaveAudioFileMetadata(ctx, ports.AudioFileMetadata{
		Filename:    "meeting.wav",
		ResourceURI: "media://audio-studio/abc.wav",
		SizeBytes:   1024,
	})
	require.NoError(t, err)

	execID, err := g.StartExecution(ctx, "wf-1", audioID, map[string]interface{}{"filename": "meeting.wav"})
	require.NoError(t, err)

	status, _, ok := g.ExecutionStatus(execID)
	require.True(t, ok)
	assert.Equal(t, "running", status)

	require.NoError(t, g.CompleteExecution(ctx, execID, "failed", "upload failed"))
	status, errMsg, ok := g.ExecutionStatus(execID)
	require.True(t, ok)
	assert.Equal(t, "failed", status)
	assert.Equal(t, "upload failed", errMsg)

	assert.Error(t, g.CompleteExecution(ctx, "missing", "completed", ""))
}

func TestLogAndResultMirrors(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	require.NoError(t, g.SaveLog(ctx, ports.LogRecord{WorkflowID: "wf-1", Message: "run started"}))
	require.NoError(t, g.SaveResult(ctx, ports.ResultRecord{WorkflowID: "wf-1", ModuleID: "m1", Status: "completed"}))

	require.Len(t, g.Logs(), 1)
	require.Len(t, g.Results(), 1)
	assert.Equal(t, "m1", g.Results()[0].ModuleID)
}

func TestErrKnobFailsEveryCall(t *testing.T) {
	g := NewGateway()
	g.Err = errors.New("down")
	ctx := context.Background()

	_, err := g.SaveWorkflow(ctx, domain.Pipeline{})
	assert.Error(t, err)
	_, err = g.StartExecution(ctx, "wf", "audio", nil)
	assert.Error(t, err)
	assert.Error(t, g.SaveLog(ctx, ports.LogRecord{}))
	assert.Error(t, g.SaveResult(ctx, ports.ResultRecord{}))
	_, err = g.ListWorkflows(ctx)
	assert.Error(t, err)
}
