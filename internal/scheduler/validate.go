package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// Validate checks the registered graph for references to unregistered task
// IDs and for cycles, returning a flat topological order when the graph is
// sound. It is a diagnostic: by default the scheduler silently omits tasks
// that never reach in-degree zero, and Validate surfaces those cases as
// errors instead. Execute calls it automatically when Config.Strict is set.
func (s *Scheduler) Validate() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Every declared dependency must name a registered task.
	for id, task := range s.tasks {
		for _, dep := range task.Dependencies() {
			if _, exists := s.tasks[dep.TaskID]; !exists {
				return nil, fmt.Errorf("task %q depends on unregistered task %q", id, dep.TaskID)
			}
		}
	}

	// Build edges for topological sort.
	var edges []toposort.Edge
	for id, task := range s.tasks {
		deps := task.Dependencies()
		if len(deps) == 0 {
			// Edge from nil keeps dependency-free tasks in the result.
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, dep := range deps {
			// Edge (dep, id): the dependency sorts before the dependent.
			edges = append(edges, toposort.Edge{dep.TaskID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Catches tasks lost to disconnected anomalies.
	if len(order) != len(s.tasks) {
		var missing []string
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for id := range s.tasks {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
