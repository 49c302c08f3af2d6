package pipeline_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/domain"
)

func TestExportImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	input, err := store.AddModule("file-input", domain.Position{X: 1, Y: 2})
	require.NoError(t, err)
	diar, err := store.AddModule("diar-pyannote31", domain.Position{X: 3, Y: 4})
	require.NoError(t, err)
	store.AddConnection(input, "audio", diar, "audio")
	require.NoError(t, store.UpdateModuleParameters(diar, map[string]interface{}{"numSpeakers": 4}))

	data, err := store.ExportJSON()
	require.NoError(t, err)

	var doc pipeline.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, pipeline.ExportVersion, doc.Version)
	assert.NotEmpty(t, doc.ExportedAt)

	// Import into a fresh store.
	other := newTestStore(t)
	require.NoError(t, other.ImportJSON(data))

	snap := other.Snapshot()
	require.Len(t, snap.Pipeline.Modules, 2)
	require.Len(t, snap.Pipeline.Connections, 1)

	// Fresh identities everywhere.
	for _, m := range snap.Pipeline.Modules {
		assert.NotEqual(t, input, m.ID)
		assert.NotEqual(t, diar, m.ID)
		assert.Equal(t, domain.ModuleStatusIdle, m.Status)
		assert.Nil(t, m.Progress)
	}

	// Endpoints remapped onto the new ids.
	conn := snap.Pipeline.Connections[0]
	source := snap.Pipeline.Module(conn.SourceID)
	target := snap.Pipeline.Module(conn.TargetID)
	require.NotNil(t, source)
	require.NotNil(t, target)
	assert.Equal(t, "file-input", source.DefinitionID)
	assert.Equal(t, "diar-pyannote31", target.DefinitionID)

	// Parameter values survive the round trip (numbers arrive as JSON
	// float64).
	assert.EqualValues(t, 4, target.Parameters["numSpeakers"])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "my_session_2_pipeline.json", pipeline.ExportFilename("My Session 2"))
	assert.Equal(t, "a_b_pipeline.json", pipeline.ExportFilename("a/b"))
	assert.Equal(t, "_pipeline.json", pipeline.ExportFilename(""))
}

func TestImportRejectsMalformedDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing id", `{"name":"x","modules":[],"connections":[]}`},
		{"missing name", `{"id":"p1","modules":[],"connections":[]}`},
		{"missing modules", `{"id":"p1","name":"x","connections":[]}`},
		{"missing connections", `{"id":"p1","name":"x","modules":[]}`},
		{"module missing definition", `{"id":"p1","name":"x","connections":[],"modules":[{"id":"m1","name":"M","type":"input"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			before := store.Snapshot().Pipeline

			err := store.ImportJSON([]byte(tc.doc))
			var importErr *pipeline.ImportError
			require.ErrorAs(t, err, &importErr)

			// A rejected import must leave the current pipeline alone.
			assert.Equal(t, before.ID, store.Snapshot().Pipeline.ID)
		})
	}
}

func TestImportAcceptsEmptyPipeline(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ImportJSON([]byte(`{"id":"p1","name":"Empty","modules":[],"connections":[]}`)))

	snap := store.Snapshot()
	assert.Equal(t, "Empty", snap.Pipeline.Name)
	assert.Empty(t, snap.Pipeline.Modules)
	assert.Equal(t, domain.PhaseIdle, snap.Phase)
}
