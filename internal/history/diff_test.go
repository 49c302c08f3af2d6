package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/history"
	procmemory "github.com/audiostudio/conductor/pkg/adapters/processing/memory"
	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

func entry(id string, speakers, segments int, params map[string]map[string]interface{}) domain.ExecutionHistoryEntry {
	return domain.ExecutionHistoryEntry{
		ID:           id,
		WorkflowName: "Test pipeline",
		Timestamp:    time.Now().UTC(),
		Parameters:   params,
		Result: domain.DiarizationResult{
			Status:       "completed",
			OutputURI:    "memory://results/" + id,
			SpeakerCount: speakers,
			SegmentCount: segments,
		},
	}
}

func TestDiffIdenticalEntries(t *testing.T) {
	a := entry("a", 3, 42, map[string]map[string]interface{}{
		"m1": {"numSpeakers": 3, "model": "precision-2"},
	})

	cmp := history.Diff(a, a)

	assert.Equal(t, 0, cmp.SpeakerCountDelta)
	assert.Equal(t, 0, cmp.SegmentCountDelta)
	assert.Empty(t, cmp.Parameters, "identical entries yield no parameter rows")
}

func TestDiffScalarDeltas(t *testing.T) {
	a := entry("a", 3, 40, nil)
	b := entry("b", 5, 36, nil)

	cmp := history.Diff(a, b)

	assert.Equal(t, "a", cmp.EntryA)
	assert.Equal(t, "b", cmp.EntryB)
	assert.Equal(t, 2, cmp.SpeakerCountDelta, "delta is B minus A")
	assert.Equal(t, -4, cmp.SegmentCountDelta)
}

func TestDiffParameterChanges(t *testing.T) {
	a := entry("a", 3, 42, map[string]map[string]interface{}{
		"m1": {"numSpeakers": 3, "model": "precision-2"},
	})
	b := entry("b", 3, 42, map[string]map[string]interface{}{
		"m1": {"numSpeakers": 5, "model": "precision-2", "useGPU": true},
	})

	cmp := history.Diff(a, b)

	require.Len(t, cmp.Parameters, 2)

	byKey := map[string]history.ParameterDelta{}
	for _, d := range cmp.Parameters {
		byKey[d.Key] = d
	}

	changed := byKey["numSpeakers"]
	assert.Equal(t, "m1", changed.ModuleID)
	assert.Equal(t, "3", changed.ValueA)
	assert.Equal(t, "5", changed.ValueB)

	// A key present on one side only carries the undefined sentinel.
	added := byKey["useGPU"]
	assert.Equal(t, history.UndefinedValue, added.ValueA)
	assert.Equal(t, "true", added.ValueB)
}

func TestDiffModulePresentOnOneSide(t *testing.T) {
	a := entry("a", 1, 1, map[string]map[string]interface{}{
		"m1": {"threshold": 0.5},
	})
	b := entry("b", 1, 1, nil)

	cmp := history.Diff(a, b)

	require.Len(t, cmp.Parameters, 1)
	assert.Equal(t, "m1", cmp.Parameters[0].ModuleID)
	assert.Equal(t, "0.5", cmp.Parameters[0].ValueA)
	assert.Equal(t, history.UndefinedValue, cmp.Parameters[0].ValueB)
}

func TestFetchSegmentsPopulatesBothSides(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{})
	proc.Segments = []domain.SpeakerSegment{
		{Start: 0, End: 1.5, Speaker: "SPEAKER_00"},
		{Start: 1.5, End: 3, Speaker: "SPEAKER_01"},
	}
	a := entry("a", 2, 2, nil)
	b := entry("b", 2, 2, nil)

	cmp := history.Diff(a, b)
	history.FetchSegments(context.Background(), proc, zap.NewNop(), &cmp, a, b)

	assert.Len(t, cmp.SegmentsA, 2)
	assert.Len(t, cmp.SegmentsB, 2)
}

func TestFetchSegmentsDegradesOnFailure(t *testing.T) {
	proc := procmemory.New(ports.SubmitResult{})
	proc.FetchErr = procmemory.ErrScripted
	a := entry("a", 2, 2, nil)
	b := entry("b", 2, 2, nil)

	cmp := history.Diff(a, b)
	history.FetchSegments(context.Background(), proc, zap.NewNop(), &cmp, a, b)

	// Failure degrades to empty lists; the scalar diff is untouched.
	assert.Empty(t, cmp.SegmentsA)
	assert.Empty(t, cmp.SegmentsB)
	assert.Equal(t, 0, cmp.SpeakerCountDelta)
}

func TestStoreAppendListGet(t *testing.T) {
	store := history.NewStore()

	first := entry("run-1", 2, 10, nil)
	second := entry("run-2", 3, 12, nil)
	store.Append("wf-1", first)
	store.Append("wf-1", second)
	store.Append("wf-2", entry("run-3", 1, 4, nil))

	entries := store.List("wf-1")
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].ID)
	assert.Equal(t, "run-2", entries[1].ID)
	assert.Empty(t, store.List("unknown"))

	got, err := store.Get("run-3")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Result.SpeakerCount)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, history.ErrEntryNotFound)
}

func TestStoreClonesEntries(t *testing.T) {
	store := history.NewStore()
	e := entry("run-1", 2, 10, map[string]map[string]interface{}{
		"m1": {"numSpeakers": 2},
	})
	store.Append("wf-1", e)

	// Mutating the retrieved entry must not leak into the store.
	got, err := store.Get("run-1")
	require.NoError(t, err)
	got.Parameters["m1"]["numSpeakers"] = 99

	again, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Parameters["m1"]["numSpeakers"])
}
