package domain

import "time"

// Connection is a directed edge between a named output port and a named
// input port of two module instances. Endpoint existence is checked by
// the validator, not at creation time.
type Connection struct {
	ID         string `json:"id"`
	SourceID   string `json:"sourceId"`
	SourcePort string `json:"sourcePort"`
	TargetID   string `json:"targetId"`
	TargetPort string `json:"targetPort"`
}

// Pipeline is one composed graph of modules and connections. Exactly one
// pipeline is current at a time in the store.
type Pipeline struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Modules     []ModuleInstance `json:"modules"`
	Connections []Connection     `json:"connections"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	out := p
	out.Modules = make([]ModuleInstance, len(p.Modules))
	for i, m := range p.Modules {
		out.Modules[i] = m.Clone()
	}
	out.Connections = make([]Connection, len(p.Connections))
	copy(out.Connections, p.Connections)
	return out
}

// Module returns the instance with the given id, or nil.
func (p Pipeline) Module(id string) *ModuleInstance {
	for i := range p.Modules {
		if p.Modules[i].ID == id {
			return &p.Modules[i]
		}
	}
	return nil
}

// ModulesOfType returns all instances with the given type, in order.
func (p Pipeline) ModulesOfType(t ModuleType) []ModuleInstance {
	var out []ModuleInstance
	for _, m := range p.Modules {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
