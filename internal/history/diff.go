package history

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// UndefinedValue is the sentinel rendered for a parameter missing on
// one side of a comparison.
const UndefinedValue = "undefined"

// ParameterDelta is one differing (module, key) pair between two
// entries. Values are serialized; a side without the value carries the
// undefined sentinel. Equal values are never emitted.
type ParameterDelta struct {
	ModuleID string `json:"moduleId"`
	Key      string `json:"key"`
	ValueA   string `json:"valueA"`
	ValueB   string `json:"valueB"`
}

// Comparison is the result of diffing two history entries. Scalar
// deltas are always present; zero means no change, it is not omitted.
type Comparison struct {
	EntryA string `json:"entryA"`
	EntryB string `json:"entryB"`

	SpeakerCountDelta int `json:"speakerCountDelta"`
	SegmentCountDelta int `json:"segmentCountDelta"`

	Parameters []ParameterDelta `json:"parameters"`

	SegmentsA []domain.SpeakerSegment `json:"segmentsA,omitempty"`
	SegmentsB []domain.SpeakerSegment `json:"segmentsB,omitempty"`
}

// Diff computes the scalar and parameter deltas between two entries.
// Segment detail is not part of the stored entry; see FetchSegments.
func Diff(a, b domain.ExecutionHistoryEntry) Comparison {
	cmp := Comparison{
		EntryA:            a.ID,
		EntryB:            b.ID,
		SpeakerCountDelta: b.Result.SpeakerCount - a.Result.SpeakerCount,
		SegmentCountDelta: b.Result.SegmentCount - a.Result.SegmentCount,
		Parameters:        []ParameterDelta{},
	}

	moduleIDs := unionKeys(a.Parameters, b.Parameters)
	for _, moduleID := range moduleIDs {
		paramsA := a.Parameters[moduleID]
		paramsB := b.Parameters[moduleID]
		for _, key := range unionParamKeys(paramsA, paramsB) {
			valueA, okA := lookup(paramsA, key)
			valueB, okB := lookup(paramsB, key)
			renderedA := render(valueA, okA)
			renderedB := render(valueB, okB)
			if renderedA == renderedB {
				continue
			}
			cmp.Parameters = append(cmp.Parameters, ParameterDelta{
				ModuleID: moduleID,
				Key:      key,
				ValueA:   renderedA,
				ValueB:   renderedB,
			})
		}
	}
	return cmp
}

// FetchSegments loads the segment detail for both sides lazily from
// their output resources. A fetch failure on one side degrades that
// side to an empty list; the other side and the scalar/parameter diff
// are unaffected.
func FetchSegments(ctx context.Context, processing ports.Processing, logger *zap.Logger, cmp *Comparison, a, b domain.ExecutionHistoryEntry) {
	cmp.SegmentsA = fetchSide(ctx, processing, logger, a)
	cmp.SegmentsB = fetchSide(ctx, processing, logger, b)
}

func fetchSide(ctx context.Context, processing ports.Processing, logger *zap.Logger, entry domain.ExecutionHistoryEntry) []domain.SpeakerSegment {
	if entry.Result.OutputURI == "" {
		return []domain.SpeakerSegment{}
	}
	segments, err := processing.FetchResultObject(ctx, entry.Result.OutputURI)
	if err != nil {
		logger.Warn("segment fetch failed for history entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		return []domain.SpeakerSegment{}
	}
	if segments == nil {
		segments = []domain.SpeakerSegment{}
	}
	return segments
}

// render serializes a parameter value for structural comparison.
func render(v interface{}, present bool) string {
	if !present {
		return UndefinedValue
	}
	data, err := json.Marshal(v)
	if err != nil {
		return UndefinedValue
	}
	return string(data)
}

func lookup(params map[string]interface{}, key string) (interface{}, bool) {
	if params == nil {
		return nil, false
	}
	v, ok := params[key]
	return v, ok
}

func unionKeys(a, b map[string]map[string]interface{}) []string {
	set := make(map[string]bool, len(a)+len(b))
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unionParamKeys(a, b map[string]interface{}) []string {
	set := make(map[string]bool, len(a)+len(b))
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
