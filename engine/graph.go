package engine

import (
	"fmt"

	"github.com/lyzr/flowengine/sdk"
)

// compiledNode is the internal per-node bookkeeping the scheduler and
// assembler consult during a run: its declared dependencies (deduped
// to unique source ids) and the deduped edge list feeding it.
type compiledNode struct {
	node          sdk.Node
	dependencies  []string // unique source node ids, declaration order
	dependents    []string // unique target node ids, declaration order
	incomingEdges []sdk.Edge
}

// graph is the compiled form of an sdk.Workflow: validated to be a DAG,
// with duplicate edges collapsed and a stable declaration order kept
// for topological tie-breaking (spec.md §4.5).
type graph struct {
	nodes map[string]*compiledNode
	order []string // original node declaration order
}

// compile validates wf and builds its graph, rejecting duplicate node
// ids, dangling edges, and cycles with sdk.ErrInvalidWorkflow.
func compile(wf sdk.Workflow) (*graph, error) {
	g := &graph{nodes: make(map[string]*compiledNode, len(wf.Nodes))}

	for _, n := range wf.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "duplicate node id: "+n.ID, nil)
		}
		g.nodes[n.ID] = &compiledNode{node: n}
		g.order = append(g.order, n.ID)
	}

	seenEdge := make(map[string]bool)
	for _, e := range wf.Edges {
		src, ok := g.nodes[e.Source]
		if !ok {
			return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "edge references unknown source: "+e.Source, nil)
		}
		dst, ok := g.nodes[e.Target]
		if !ok {
			return nil, sdk.NewError(sdk.ErrInvalidWorkflow, "edge references unknown target: "+e.Target, nil)
		}

		key := fmt.Sprintf("%s|%s|%s|%s", e.Source, e.Target, e.SourceHandle, e.TargetHandle)
		if seenEdge[key] {
			continue // duplicate edges collapse to one dependency
		}
		seenEdge[key] = true

		dst.incomingEdges = append(dst.incomingEdges, e)
		if !containsStr(dst.dependencies, e.Source) {
			dst.dependencies = append(dst.dependencies, e.Source)
		}
		if !containsStr(src.dependents, e.Target) {
			src.dependents = append(src.dependents, e.Target)
		}
	}

	if err := checkAcyclic(g); err != nil {
		return nil, err
	}
	return g, nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// checkAcyclic runs a DFS cycle check over the compiled graph,
// visiting nodes in declaration order so error messages are stable.
func checkAcyclic(g *graph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range g.nodes[id].dependents {
			switch color[dep] {
			case gray:
				return sdk.NewError(sdk.ErrInvalidWorkflow, "cyclic graph involving node: "+dep, nil)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
