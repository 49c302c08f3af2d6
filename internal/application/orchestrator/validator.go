package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/audiostudio/conductor/pkg/domain"
)

// ValidationResult is the outcome of a structural pipeline check.
// Errors make the pipeline invalid; Warnings flag suspicious structure
// (unreachable modules) without blocking execution.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator performs structural validation of pipelines.
type Validator struct{}

// NewValidator creates a pipeline validator.
func NewValidator() *Validator {
	return &Validator{}
}

// disconnectExempt lists module types excluded from the disconnected
// check: inputs and outputs anchor the graph, and diarization modules
// run against the uploaded file directly.
func disconnectExempt(t domain.ModuleType) bool {
	return t == domain.ModuleTypeInput || t == domain.ModuleTypeOutput || t == domain.ModuleTypeDiarization
}

// Validate checks a pipeline for structural problems.
//
// The fast-path checks (missing input, missing output, disconnected
// modules) decide validity together with cycle detection; reachability
// from input modules is reported as warnings only.
func (v *Validator) Validate(p domain.Pipeline) ValidationResult {
	result := ValidationResult{}

	if len(p.ModulesOfType(domain.ModuleTypeInput)) == 0 {
		result.Errors = append(result.Errors, "pipeline must have at least one input module")
	}
	if len(p.ModulesOfType(domain.ModuleTypeOutput)) == 0 {
		result.Errors = append(result.Errors, "pipeline must have at least one output module")
	}

	connected := make(map[string]bool, len(p.Modules))
	for _, c := range p.Connections {
		connected[c.SourceID] = true
		connected[c.TargetID] = true
	}

	var disconnected []string
	for _, m := range p.Modules {
		if disconnectExempt(m.Type) {
			continue
		}
		if !connected[m.ID] {
			disconnected = append(disconnected, m.Name)
		}
	}
	if len(disconnected) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("disconnected modules: %s", strings.Join(disconnected, ", ")))
	}

	if cycle := v.findCycle(p); len(cycle) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("pipeline contains a cycle through: %s", strings.Join(cycle, ", ")))
	}

	result.Warnings = append(result.Warnings, v.unreachable(p)...)

	result.IsValid = len(result.Errors) == 0
	return result
}

// findCycle runs Kahn's algorithm and returns the names of modules left
// on a cycle, or nil.
func (v *Validator) findCycle(p domain.Pipeline) []string {
	indegree := make(map[string]int, len(p.Modules))
	adjacency := make(map[string][]string, len(p.Modules))
	names := make(map[string]string, len(p.Modules))
	for _, m := range p.Modules {
		indegree[m.ID] = 0
		names[m.ID] = m.Name
	}
	for _, c := range p.Connections {
		if _, ok := indegree[c.SourceID]; !ok {
			continue
		}
		if _, ok := indegree[c.TargetID]; !ok {
			continue
		}
		adjacency[c.SourceID] = append(adjacency[c.SourceID], c.TargetID)
		indegree[c.TargetID]++
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited == len(p.Modules) {
		return nil
	}

	var cycle []string
	for id, deg := range indegree {
		if deg > 0 {
			cycle = append(cycle, names[id])
		}
	}
	sort.Strings(cycle)
	return cycle
}

// unreachable reports modules not reachable from any input module,
// skipping types exempt from the disconnected check.
func (v *Validator) unreachable(p domain.Pipeline) []string {
	inputs := p.ModulesOfType(domain.ModuleTypeInput)
	if len(inputs) == 0 {
		return nil
	}

	adjacency := make(map[string][]string, len(p.Modules))
	for _, c := range p.Connections {
		adjacency[c.SourceID] = append(adjacency[c.SourceID], c.TargetID)
	}

	reached := make(map[string]bool, len(p.Modules))
	var queue []string
	for _, m := range inputs {
		reached[m.ID] = true
		queue = append(queue, m.ID)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var warnings []string
	for _, m := range p.Modules {
		if reached[m.ID] || disconnectExempt(m.Type) {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("module %q is not reachable from any input module", m.Name))
	}
	return warnings
}
