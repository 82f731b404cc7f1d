// Package graph implements the DAG scheduler (C2): a layered Kahn's
// algorithm topological sort over a manifest's ref edges, ported from
// verity-core's GraphSolver.
package graph

import (
	"fmt"
	"sort"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// Layer is an unordered set of node names that may execute concurrently.
// Callers must not depend on any particular iteration order within a layer.
type Layer []string

// PlanExecution computes the execution layers for m. It fails fast with a
// CircularDependency DomainError on any dangling ref, and with the same
// error kind (reporting the resolved/total ratio) if a cycle prevents full
// resolution.
func PlanExecution(m *manifest.Manifest) ([]Layer, error) {
	inDegree := make(map[string]int, len(m.Nodes))
	// reverse adjacency: parent -> children that depend on it
	children := make(map[string][]string, len(m.Nodes))

	for name := range m.Nodes {
		inDegree[name] = 0
	}

	// Deterministic edge construction: iterate node names in sorted order so
	// adjacency lists build in a stable order, even though layer membership
	// itself carries no ordering guarantee.
	names := m.SortedNodeNames()
	for _, name := range names {
		node := m.Nodes[name]
		for _, ref := range node.Refs {
			if _, ok := m.Nodes[ref]; !ok {
				return nil, verrors.CircularDependency(fmt.Sprintf(
					"Dangling Reference: Model '%s' depends on '%s' which does not exist.", name, ref,
				))
			}
			children[ref] = append(children[ref], name)
			inDegree[name]++
		}
	}

	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var layers []Layer
	resolved := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		layer := make(Layer, len(queue))
		copy(layer, queue)
		layers = append(layers, layer)
		resolved += len(queue)

		var next []string
		for _, parent := range queue {
			for _, child := range children[parent] {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		queue = next
	}

	total := len(m.Nodes)
	if resolved < total {
		return nil, verrors.CircularDependency(fmt.Sprintf(
			"Graph contains a cycle. Resolved %d/%d nodes. Check your dependencies.", resolved, total,
		))
	}

	return layers, nil
}
