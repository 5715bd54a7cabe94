package agent

import (
	"testing"

	"github.com/shhady/leadform/backend/model"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistryFrom([]model.Agent{{ID: "agent1", Name: "Shady"}})

	tests := []struct {
		id       string
		expected bool
	}{
		{"agent1", true},
		{"agent9", false},
		{"", false},
		{"AGENT1", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a, ok := r.Lookup(tt.id)
			if ok != tt.expected {
				t.Errorf("Expected %v for '%s', got %v", tt.expected, tt.id, ok)
			}
			if ok && a.Name != "Shady" {
				t.Errorf("Expected name 'Shady', got '%s'", a.Name)
			}
			if r.Allowed(tt.id) != tt.expected {
				t.Errorf("Allowed disagrees with Lookup for '%s'", tt.id)
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := NewRegistry()
	if !r.Allowed("agent1") {
		t.Error("Expected agent1 to be in the compiled-in list")
	}
}
