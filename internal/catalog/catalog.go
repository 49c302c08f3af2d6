// Package catalog provides the built-in module palette and implements
// the ports.ModuleCatalog contract over it.
package catalog

import (
	"github.com/audiostudio/conductor/pkg/domain"
)

// DiarizationCapableIDs is the closed allowlist of definition ids whose
// parameters are harvested into submit options and which receive
// results and progress during a run.
var DiarizationCapableIDs = map[string]bool{
	"vad-silero":      true,
	"diar-pyannote":   true,
	"diar-pyannote31": true,
}

// Catalog is an immutable in-memory module catalog.
type Catalog struct {
	byID  map[string]domain.ModuleDefinition
	order []string
}

// New builds a catalog from a fixed definition list. Later duplicates
// of an id are ignored.
func New(defs []domain.ModuleDefinition) *Catalog {
	c := &Catalog{byID: make(map[string]domain.ModuleDefinition, len(defs))}
	for _, def := range defs {
		if _, ok := c.byID[def.ID]; ok {
			continue
		}
		c.byID[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c
}

// Builtin returns the catalog holding the standard palette.
func Builtin() *Catalog {
	return New(builtinDefinitions)
}

// Lookup returns the definition for an id, or false if unknown.
func (c *Catalog) Lookup(id string) (domain.ModuleDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// List returns all definitions in palette order.
func (c *Catalog) List() []domain.ModuleDefinition {
	out := make([]domain.ModuleDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IsDiarizationCapable reports whether a definition id is in the
// diarization allowlist.
func IsDiarizationCapable(definitionID string) bool {
	return DiarizationCapableIDs[definitionID]
}

func f(v float64) *float64 { return &v }

var builtinDefinitions = []domain.ModuleDefinition{
	{
		ID:   "file-input",
		Name: "File Input",
		Type: domain.ModuleTypeInput,
		Parameters: map[string]domain.ParameterSpec{
			"sampleRate": {Type: domain.ParameterTypeSelect, Options: []string{"8000", "16000", "44100", "48000"}, Default: "16000"},
			"channels":   {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(8), Default: 1},
		},
		OutputPorts: []domain.Port{{Name: "audio"}},
	},
	{
		ID:   "preprocess-normalize",
		Name: "Normalization",
		Type: domain.ModuleTypeNormalization,
		Parameters: map[string]domain.ParameterSpec{
			"targetLevel": {Type: domain.ParameterTypeNumber, Min: f(-60), Max: f(0), Default: -23},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "audio"}},
	},
	{
		ID:   "vad-silero",
		Name: "Silero VAD",
		Type: domain.ModuleTypeVAD,
		Parameters: map[string]domain.ParameterSpec{
			"threshold":     {Type: domain.ParameterTypeNumber, Min: f(0), Max: f(1), Default: 0.5},
			"minSpeechMs":   {Type: domain.ParameterTypeNumber, Min: f(0), Max: f(5000), Default: 250},
			"minSilenceMs":  {Type: domain.ParameterTypeNumber, Min: f(0), Max: f(5000), Default: 100},
			"useGPU":        {Type: domain.ParameterTypeBoolean, Default: false},
			"windowSamples": {Type: domain.ParameterTypeSelect, Options: []string{"512", "1024", "1536"}, Default: "512"},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "speech"}},
	},
	{
		ID:   "denoise-rnnoise",
		Name: "RNNoise Denoise",
		Type: domain.ModuleTypeNoise,
		Parameters: map[string]domain.ParameterSpec{
			"strength": {Type: domain.ParameterTypeNumber, Min: f(0), Max: f(1), Default: 0.8},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "audio"}},
	},
	{
		ID:   "dereverb-wpe",
		Name: "WPE Dereverberation",
		Type: domain.ModuleTypeDereverberation,
		Parameters: map[string]domain.ParameterSpec{
			"taps":  {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(30), Default: 10},
			"delay": {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(10), Default: 3},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "audio"}},
	},
	{
		ID:   "beamform-mvdr",
		Name: "MVDR Beamforming",
		Type: domain.ModuleTypeBeamforming,
		Parameters: map[string]domain.ParameterSpec{
			"referenceChannel": {Type: domain.ParameterTypeNumber, Min: f(0), Max: f(7), Default: 0},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "audio"}},
	},
	{
		ID:   "asr-whisper",
		Name: "Whisper ASR",
		Type: domain.ModuleTypeASR,
		Parameters: map[string]domain.ParameterSpec{
			"model":    {Type: domain.ParameterTypeSelect, Options: []string{"tiny", "base", "small", "medium", "large-v3"}, Default: "base"},
			"language": {Type: domain.ParameterTypeString, Default: "auto"},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "text"}},
	},
	{
		ID:   "diar-pyannote",
		Name: "Pyannote Diarization",
		Type: domain.ModuleTypeDiarization,
		Parameters: map[string]domain.ParameterSpec{
			"model":               {Type: domain.ParameterTypeSelect, Options: []string{"precision-1", "precision-2"}, Default: "precision-2"},
			"numSpeakers":         {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"minSpeakers":         {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"maxSpeakers":         {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"turnLevelConfidence": {Type: domain.ParameterTypeBoolean, Default: false},
			"exclusive":           {Type: domain.ParameterTypeBoolean, Default: false},
			"confidence":          {Type: domain.ParameterTypeBoolean, Default: false},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "segments"}},
	},
	{
		ID:   "diar-pyannote31",
		Name: "Pyannote 3.1 Diarization",
		Type: domain.ModuleTypeDiarization,
		Parameters: map[string]domain.ParameterSpec{
			"numSpeakers":        {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"minSpeakers":        {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"maxSpeakers":        {Type: domain.ParameterTypeNumber, Min: f(1), Max: f(20)},
			"useGPU":             {Type: domain.ParameterTypeBoolean, Default: true},
			"progressMonitoring": {Type: domain.ParameterTypeBoolean, Default: true},
			"memoryOptimized":    {Type: domain.ParameterTypeBoolean, Default: false},
			"enhancedFeatures":   {Type: domain.ParameterTypeBoolean, Default: false},
		},
		InputPorts:  []domain.Port{{Name: "audio"}},
		OutputPorts: []domain.Port{{Name: "segments"}},
	},
	{
		ID:   "json-output",
		Name: "JSON Output",
		Type: domain.ModuleTypeOutput,
		Parameters: map[string]domain.ParameterSpec{
			"pretty": {Type: domain.ParameterTypeBoolean, Default: true},
		},
		InputPorts: []domain.Port{{Name: "segments"}},
	},
}
