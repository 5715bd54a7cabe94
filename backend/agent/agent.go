// Package agent holds the compiled-in allow-list of referral agents.
package agent

import "github.com/shhady/leadform/backend/model"

var allowed = []model.Agent{
	{ID: "agent1", Name: "שאדי"},
	{ID: "agent2", Name: "מוחמד"},
	{ID: "agent3", Name: "ראמי"},
}

type Registry struct {
	agents map[string]model.Agent
}

// NewRegistry builds a registry from the compiled-in list.
func NewRegistry() *Registry {
	return NewRegistryFrom(allowed)
}

func NewRegistryFrom(agents []model.Agent) *Registry {
	r := &Registry{agents: make(map[string]model.Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

// Lookup returns the agent for id.
func (r *Registry) Lookup(id string) (model.Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

func (r *Registry) Allowed(id string) bool {
	_, ok := r.agents[id]
	return ok
}
