package pyannote

import (
	"encoding/json"
	"fmt"

	"github.com/audiostudio/conductor/pkg/domain"
)

// DecodeSegments parses a diarization output payload. The service has
// shipped several shapes over time; all of them are accepted:
//
//	[{"start":..,"end":..,"speaker":".."}]
//	{"segments":[...]}
//	{"diarization":[...]}
//	{"output":{"diarization":[...]}}
func DecodeSegments(data []byte) ([]domain.SpeakerSegment, error) {
	if len(data) == 0 {
		return []domain.SpeakerSegment{}, nil
	}

	var bare []domain.SpeakerSegment
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapper struct {
		Segments    []domain.SpeakerSegment `json:"segments"`
		Diarization []domain.SpeakerSegment `json:"diarization"`
		Output      *struct {
			Segments    []domain.SpeakerSegment `json:"segments"`
			Diarization []domain.SpeakerSegment `json:"diarization"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("unrecognized result payload: %w", err)
	}
	switch {
	case wrapper.Segments != nil:
		return wrapper.Segments, nil
	case wrapper.Diarization != nil:
		return wrapper.Diarization, nil
	case wrapper.Output != nil && wrapper.Output.Segments != nil:
		return wrapper.Output.Segments, nil
	case wrapper.Output != nil && wrapper.Output.Diarization != nil:
		return wrapper.Output.Diarization, nil
	}
	return []domain.SpeakerSegment{}, nil
}
