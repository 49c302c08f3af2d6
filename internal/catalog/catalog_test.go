package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiostudio/conductor/internal/catalog"
	"github.com/audiostudio/conductor/pkg/domain"
)

func TestBuiltinPalette(t *testing.T) {
	c := catalog.Builtin()

	defs := c.List()
	require.Len(t, defs, 10)
	assert.Equal(t, "file-input", defs[0].ID, "palette order is stable")
	assert.Equal(t, "json-output", defs[len(defs)-1].ID)

	def, ok := c.Lookup("diar-pyannote")
	require.True(t, ok)
	assert.Equal(t, domain.ModuleTypeDiarization, def.Type)

	_, ok = c.Lookup("nope")
	assert.False(t, ok)
}

func TestDiarizationCapableAllowlist(t *testing.T) {
	for _, id := range []string{"vad-silero", "diar-pyannote", "diar-pyannote31"} {
		assert.True(t, catalog.IsDiarizationCapable(id), id)
	}
	for _, id := range []string{"asr-whisper", "file-input", "json-output", ""} {
		assert.False(t, catalog.IsDiarizationCapable(id), id)
	}
}

func TestDefaultParameters(t *testing.T) {
	c := catalog.Builtin()

	def, ok := c.Lookup("diar-pyannote")
	require.True(t, ok)
	params := def.DefaultParameters()
	assert.Equal(t, "precision-2", params["model"])
	assert.Equal(t, false, params["turnLevelConfidence"])
	assert.NotContains(t, params, "numSpeakers", "keys without a default stay unset")

	def, ok = c.Lookup("diar-pyannote31")
	require.True(t, ok)
	params = def.DefaultParameters()
	assert.Equal(t, true, params["useGPU"])
	assert.Equal(t, true, params["progressMonitoring"])
}

func TestNewIgnoresDuplicateIDs(t *testing.T) {
	c := catalog.New([]domain.ModuleDefinition{
		{ID: "a", Name: "First"},
		{ID: "a", Name: "Second"},
	})

	require.Len(t, c.List(), 1)
	def, _ := c.Lookup("a")
	assert.Equal(t, "First", def.Name)
}
