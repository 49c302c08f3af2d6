package orchestrator

import (
	"strconv"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// harvestOptions folds the recognized keys of every diarization-capable
// module's parameter map into one submit options record. Unrecognized
// keys pass through untouched; later modules win on conflicts.
func harvestOptions(parts participants, p domain.Pipeline) ports.SubmitOptions {
	opts := ports.SubmitOptions{}
	for _, id := range parts.diarIDs {
		m := p.Module(id)
		if m == nil {
			continue
		}
		for key, value := range m.Parameters {
			switch key {
			case "model":
				if s, ok := value.(string); ok && s != "" {
					opts.Model = s
				}
			case "numSpeakers":
				opts.NumSpeakers = intValue(value)
			case "minSpeakers":
				opts.MinSpeakers = intValue(value)
			case "maxSpeakers":
				opts.MaxSpeakers = intValue(value)
			case "turnLevelConfidence":
				opts.TurnLevelConfidence = boolValue(value)
			case "exclusive":
				opts.Exclusive = boolValue(value)
			case "confidence":
				opts.Confidence = boolValue(value)
			case "useGPU":
				opts.UseGPU = boolValue(value)
			case "progressMonitoring":
				opts.ProgressMonitoring = boolValue(value)
			case "memoryOptimized":
				opts.MemoryOptimized = boolValue(value)
			case "enhancedFeatures":
				opts.EnhancedFeatures = boolValue(value)
			}
		}
	}
	return opts
}

// intValue reads a parameter that may arrive as a Go int, a JSON
// float64 or a numeric string. Returns nil when unparseable.
func intValue(v interface{}) *int {
	switch n := v.(type) {
	case int:
		return &n
	case float64:
		i := int(n)
		return &i
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
	}
	return nil
}

func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	}
	return false
}
