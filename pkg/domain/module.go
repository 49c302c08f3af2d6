package domain

// ModuleType classifies the processing capability of a module definition.
type ModuleType string

const (
	ModuleTypeInput           ModuleType = "input"
	ModuleTypePreprocessing   ModuleType = "preprocessing"
	ModuleTypeVAD             ModuleType = "vad"
	ModuleTypeNoise           ModuleType = "noise"
	ModuleTypeDereverberation ModuleType = "dereverberation"
	ModuleTypeBeamforming     ModuleType = "beamforming"
	ModuleTypeNormalization   ModuleType = "normalization"
	ModuleTypeASR             ModuleType = "asr"
	ModuleTypeDiarization     ModuleType = "diarization"
	ModuleTypeOutput          ModuleType = "output"
)

// ModuleStatus is the execution status of a placed module.
type ModuleStatus string

const (
	ModuleStatusIdle      ModuleStatus = "idle"
	ModuleStatusRunning   ModuleStatus = "running"
	ModuleStatusCompleted ModuleStatus = "completed"
	ModuleStatusError     ModuleStatus = "error"
)

// ParameterType describes the scalar kind of a module parameter.
type ParameterType string

const (
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeString  ParameterType = "string"
	ParameterTypeBoolean ParameterType = "boolean"
	ParameterTypeSelect  ParameterType = "select"
)

// ParameterSpec describes one key in a module definition's parameter schema.
type ParameterSpec struct {
	Type    ParameterType `json:"type"`
	Min     *float64      `json:"min,omitempty"`
	Max     *float64      `json:"max,omitempty"`
	Options []string      `json:"options,omitempty"`
	Default interface{}   `json:"default,omitempty"`
}

// Port is a named input or output of a module definition.
type Port struct {
	Name string `json:"name"`
}

// ModuleDefinition is an immutable catalog entry describing one
// processing capability, looked up by ID.
type ModuleDefinition struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Type        ModuleType               `json:"type"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
	InputPorts  []Port                   `json:"inputPorts"`
	OutputPorts []Port                   `json:"outputPorts"`
}

// DefaultParameters builds a fresh parameter map from the schema defaults.
func (d ModuleDefinition) DefaultParameters() map[string]interface{} {
	params := make(map[string]interface{}, len(d.Parameters))
	for key, spec := range d.Parameters {
		if spec.Default != nil {
			params[key] = spec.Default
		}
	}
	return params
}

// Position is the canvas placement of a module. It has no effect on
// execution and is carried only for the editing surface.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ModuleInstance is a placed, configured occurrence of a definition
// inside one pipeline.
type ModuleInstance struct {
	ID            string                 `json:"id"`
	DefinitionID  string                 `json:"definitionId"`
	Name          string                 `json:"name"`
	Type          ModuleType             `json:"type"`
	Position      Position               `json:"position"`
	Parameters    map[string]interface{} `json:"parameters"`
	Status        ModuleStatus           `json:"status"`
	Progress      *int                   `json:"progress,omitempty"`
	ExecutionTime *float64               `json:"executionTime,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// Clone returns a deep copy of the instance. The store hands out
// snapshots, so shared maps must never leak across dispatches.
func (m ModuleInstance) Clone() ModuleInstance {
	out := m
	out.Parameters = make(map[string]interface{}, len(m.Parameters))
	for k, v := range m.Parameters {
		out.Parameters[k] = v
	}
	if m.Progress != nil {
		p := *m.Progress
		out.Progress = &p
	}
	if m.ExecutionTime != nil {
		t := *m.ExecutionTime
		out.ExecutionTime = &t
	}
	return out
}
