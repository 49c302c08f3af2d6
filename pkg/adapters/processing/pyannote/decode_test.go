package pyannote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSegmentsShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"bare array", `[{"start":0,"end":1.5,"speaker":"SPEAKER_00"},{"start":1.5,"end":3,"speaker":"SPEAKER_01"}]`},
		{"segments wrapper", `{"segments":[{"start":0,"end":1.5,"speaker":"SPEAKER_00"},{"start":1.5,"end":3,"speaker":"SPEAKER_01"}]}`},
		{"diarization wrapper", `{"diarization":[{"start":0,"end":1.5,"speaker":"SPEAKER_00"},{"start":1.5,"end":3,"speaker":"SPEAKER_01"}]}`},
		{"nested output", `{"output":{"diarization":[{"start":0,"end":1.5,"speaker":"SPEAKER_00"},{"start":1.5,"end":3,"speaker":"SPEAKER_01"}]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segments, err := DecodeSegments([]byte(tc.payload))
			require.NoError(t, err)
			require.Len(t, segments, 2)
			assert.Equal(t, "SPEAKER_00", segments[0].Speaker)
			assert.Equal(t, 1.5, segments[0].End)
			assert.Equal(t, "SPEAKER_01", segments[1].Speaker)
		})
	}
}

func TestDecodeSegmentsEmpty(t *testing.T) {
	segments, err := DecodeSegments(nil)
	require.NoError(t, err)
	assert.Empty(t, segments)

	segments, err = DecodeSegments([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestDecodeSegmentsRejectsGarbage(t *testing.T) {
	_, err := DecodeSegments([]byte(`not json`))
	assert.Error(t, err)
}
