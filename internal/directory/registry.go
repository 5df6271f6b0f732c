package directory

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps agent ids to assistant identifiers issued by the assistant
// provider.
type Registry struct {
	byAgent map[string]string
}

// NewRegistry copies bindings; blank assistant ids are treated as unbound.
func NewRegistry(bindings map[string]string) *Registry {
	r := &Registry{byAgent: make(map[string]string, len(bindings))}
	for agentID, assistantID := range bindings {
		assistantID = strings.TrimSpace(assistantID)
		if assistantID == "" {
			continue
		}
		r.byAgent[agentID] = assistantID
	}
	return r
}

func (r *Registry) Resolve(agentID string) (string, bool) {
	id, ok := r.byAgent[agentID]
	return id, ok
}

// Missing lists the agent ids of d that have no binding, sorted.
func (r *Registry) Missing(d *Directory) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range d.Entries() {
		id := e.Profile.AgentID
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := r.byAgent[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ConfigurationError reports a known agent without an assistant binding.
type ConfigurationError struct {
	AgentID string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no assistant id configured for agent %q", e.AgentID)
}
