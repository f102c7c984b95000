package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/reconcile/internal/ir"
)

// CheckGraph verifies the structural invariants of a pipeline graph:
//   - node ids are unique and every edge references declared nodes
//   - every node other than an extract has at least one inbound edge
//   - every classifier has exactly one true and one false outbound edge
//   - the graph is acyclic
//
// Returns all violations found.
func CheckGraph(g ir.PipelineGraph) SpecErrors {
	var errs SpecErrors

	declared := make(map[string]ir.NodeKind, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := declared[n.ID]; dup {
			errs = append(errs, SpecError{
				Field:   "nodes." + n.ID,
				Message: "node id declared twice",
				Code:    ErrGraphDuplicateID,
			})
		}
		declared[n.ID] = n.Kind
	}

	adjacency := make(adjacencyList, len(g.Nodes))
	inbound := make(map[string]int, len(g.Nodes))
	for i, e := range g.Edges {
		for _, end := range []string{e.From, e.To} {
			if _, ok := declared[end]; !ok {
				errs = append(errs, SpecError{
					Field:   fmt.Sprintf("edges[%d]", i),
					Message: fmt.Sprintf("references undeclared node %q", end),
					Code:    ErrGraphUnknownNode,
				})
			}
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
		inbound[e.To]++
	}

	for _, n := range g.Nodes {
		if n.Kind != ir.KindExtract && inbound[n.ID] == 0 {
			errs = append(errs, SpecError{
				Field:   "nodes." + n.ID,
				Message: fmt.Sprintf("%s node has no inbound edge", n.Kind),
				Code:    ErrGraphNoInbound,
			})
		}
		if n.Kind == ir.KindClassify {
			errs = append(errs, checkBranches(n.ID, g.Outgoing(n.ID))...)
		}
	}

	order := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		order[i] = n.ID
	}
	for _, scc := range tarjanSCC(order, adjacency) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], adjacency)) {
			path := reconstructCyclePath(scc, adjacency)
			errs = append(errs, SpecError{
				Field:   "edges",
				Message: "cycle: " + strings.Join(path, " -> "),
				Code:    ErrGraphCycle,
			})
		}
	}

	return errs
}

func checkBranches(id string, out []ir.Edge) SpecErrors {
	var trueCount, falseCount int
	for _, e := range out {
		switch e.Label {
		case ir.BranchTrue:
			trueCount++
		case ir.BranchFalse:
			falseCount++
		}
	}
	if len(out) == 2 && trueCount == 1 && falseCount == 1 {
		return nil
	}
	return SpecErrors{{
		Field:   "nodes." + id,
		Message: fmt.Sprintf("classifier has %d outbound edges (%d true, %d false), want one of each", len(out), trueCount, falseCount),
		Code:    ErrGraphBranches,
	}}
}

// adjacencyList maps node id to the ids it has edges into.
type adjacencyList map[string][]string

func hasSelfLoop(node string, graph adjacencyList) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so results are deterministic.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(order []string, graph adjacencyList) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath walks SCC members from the first one until it
// returns to the start.
func reconstructCyclePath(scc []string, graph adjacencyList) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
