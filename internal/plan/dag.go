// Package plan provides the directed-acyclic-graph view of a query plan
// used for validation and scheduling. A DAG is built once per
// validation/execution pass from a plan snapshot and never mutated; on
// plan change the caller rebuilds it.
package plan

import (
	"fmt"

	"github.com/yourusername/queryweaver/models"
)

// OperationDAG is the dependency graph derived from a query plan's
// depends_on edges. Node order follows the plan's insertion order, which
// makes scheduling deterministic.
type OperationDAG struct {
	plan  *models.QueryPlan
	nodes []string
	// edges[a] lists the operations that depend on a (a -> b means
	// b waits for a)
	edges    map[string][]string
	indegree map[string]int
}

// dfs colors for cycle detection
type dagColor int

const (
	colorUnvisited dagColor = iota
	colorInProgress
	colorDone
)

// NewOperationDAG builds the dependency graph for a plan snapshot.
// It fails with ErrUnknownDependency if any depends_on id is not present
// in the plan.
func NewOperationDAG(p *models.QueryPlan) (*OperationDAG, error) {
	dag := &OperationDAG{
		plan:     p,
		nodes:    p.OperationIDs(),
		edges:    make(map[string][]string),
		indegree: make(map[string]int),
	}

	for _, id := range dag.nodes {
		dag.indegree[id] = 0
	}

	for _, op := range p.Operations() {
		for _, dep := range op.DependsOn {
			if _, ok := p.Operation(dep); !ok {
				return nil, fmt.Errorf("%w: operation %s depends on missing %s",
					models.ErrUnknownDependency, op.ID, dep)
			}
			dag.edges[dep] = append(dag.edges[dep], op.ID)
			dag.indegree[op.ID]++
		}
	}

	return dag, nil
}

// Dependents returns the operations that depend on the given id
func (d *OperationDAG) Dependents(id string) []string {
	return d.edges[id]
}

// HasCycles reports whether the graph contains a dependency cycle, using
// a three-color depth-first traversal. A back-edge to an in-progress node
// signals a cycle.
func (d *OperationDAG) HasCycles() bool {
	colors := make(map[string]dagColor, len(d.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = colorInProgress
		for _, next := range d.edges[id] {
			switch colors[next] {
			case colorInProgress:
				return true
			case colorUnvisited:
				if visit(next) {
					return true
				}
			}
		}
		colors[id] = colorDone
		return false
	}

	for _, id := range d.nodes {
		if colors[id] == colorUnvisited {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// ExecutionOrder computes a total order consistent with all dependencies
// using Kahn's algorithm. Ties among simultaneously-ready operations are
// broken by the plan's insertion order, so the result is reproducible.
// It fails with ErrCyclicDependency when nodes remain unresolved after
// all zero-indegree nodes are exhausted.
func (d *OperationDAG) ExecutionOrder() ([]string, error) {
	indegree := d.copyIndegree()
	order := make([]string, 0, len(d.nodes))

	remaining := make(map[string]bool, len(d.nodes))
	for _, id := range d.nodes {
		remaining[id] = true
	}

	for len(order) < len(d.nodes) {
		// scan d.nodes so the earliest-inserted ready operation wins,
		// including one released mid-run
		picked := ""
		for _, id := range d.nodes {
			if remaining[id] && indegree[id] == 0 {
				picked = id
				break
			}
		}
		if picked == "" {
			return nil, fmt.Errorf("%w: %d of %d operations unresolvable",
				models.ErrCyclicDependency, len(d.nodes)-len(order), len(d.nodes))
		}

		delete(remaining, picked)
		order = append(order, picked)
		for _, dependent := range d.edges[picked] {
			indegree[dependent]--
		}
	}

	return order, nil
}

// ParallelBatches groups operations into waves of maximal safe
// parallelism: every operation in a batch has all its dependencies
// satisfied by earlier batches. Flattening the batches in order yields
// the same dependency guarantee as ExecutionOrder. Fails with
// ErrCyclicDependency on a cyclic graph.
func (d *OperationDAG) ParallelBatches() ([][]string, error) {
	indegree := d.copyIndegree()
	batches := make([][]string, 0)
	resolved := 0

	remaining := make(map[string]bool, len(d.nodes))
	for _, id := range d.nodes {
		remaining[id] = true
	}

	for resolved < len(d.nodes) {
		batch := make([]string, 0)
		for _, id := range d.nodes {
			if remaining[id] && indegree[id] == 0 {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("%w: %d of %d operations unresolvable",
				models.ErrCyclicDependency, len(d.nodes)-resolved, len(d.nodes))
		}

		for _, id := range batch {
			delete(remaining, id)
			for _, dependent := range d.edges[id] {
				indegree[dependent]--
			}
		}

		batches = append(batches, batch)
		resolved += len(batch)
	}

	return batches, nil
}

func (d *OperationDAG) copyIndegree() map[string]int {
	indegree := make(map[string]int, len(d.indegree))
	for id, n := range d.indegree {
		indegree[id] = n
	}
	return indegree
}
