package engine

import "github.com/lyzr/flowengine/sdk"

// nodeState is the coordinator's private bookkeeping for one node
// across a run.
type nodeState struct {
	status     sdk.Status
	reason     sdk.SkipReason
	dispatched bool
}

// runTracker holds all coordinator-owned, single-writer state for one
// run: the compiled graph, each node's lifecycle status, and which
// path a condition node selected (used to gate its outgoing edges).
type runTracker struct {
	g              *graph
	states         map[string]*nodeState
	conditionMatch map[string]*string // nodeID -> selected path id, nil if no path matched
	executionPath  []string
}

func newRunTracker(g *graph) *runTracker {
	t := &runTracker{
		g:              g,
		states:         make(map[string]*nodeState, len(g.nodes)),
		conditionMatch: make(map[string]*string),
	}
	for id := range g.nodes {
		t.states[id] = &nodeState{status: sdk.StatusPending}
	}
	return t
}

// isEdgeSatisfied reports whether edge e still carries a live value
// once its source has resolved: dead if the source failed or was
// skipped, or if the source is a condition node that routed a
// different path than e.SourceHandle.
func (t *runTracker) isEdgeSatisfied(e sdk.Edge) bool {
	srcState := t.states[e.Source]
	if srcState.status != sdk.StatusCompleted {
		return false
	}
	matched, isCondition := t.conditionMatch[e.Source]
	if !isCondition || e.SourceHandle == "" {
		return true
	}
	return matched != nil && *matched == e.SourceHandle
}

// advance runs skip propagation to a fixed point, then returns the ids
// of every node that is now ready to dispatch and has not been
// dispatched yet. Call it after every state transition.
func (t *runTracker) advance() []string {
	for {
		changed := false
		for _, id := range t.g.order {
			st := t.states[id]
			if st.status != sdk.StatusPending {
				continue
			}
			cn := t.g.nodes[id]
			if len(cn.incomingEdges) == 0 {
				continue // entry node, handled below regardless of loop convergence
			}
			if !t.allDependenciesTerminal(cn) {
				continue
			}
			if t.anyEdgeSatisfied(cn) {
				continue // becomes ready below, not skipped
			}
			st.status = sdk.StatusSkipped
			st.reason = t.skipReason(cn)
			changed = true
		}
		if !changed {
			break
		}
	}

	var ready []string
	for _, id := range t.g.order {
		st := t.states[id]
		if st.dispatched || st.status != sdk.StatusPending {
			continue
		}
		cn := t.g.nodes[id]
		if len(cn.incomingEdges) == 0 || t.anyEdgeSatisfied(cn) {
			if len(cn.incomingEdges) > 0 && !t.allDependenciesTerminal(cn) {
				continue
			}
			st.dispatched = true
			ready = append(ready, id)
		}
	}
	return ready
}

func (t *runTracker) allDependenciesTerminal(cn *compiledNode) bool {
	for _, dep := range cn.dependencies {
		switch t.states[dep].status {
		case sdk.StatusCompleted, sdk.StatusFailed, sdk.StatusSkipped:
		default:
			return false
		}
	}
	return true
}

func (t *runTracker) anyEdgeSatisfied(cn *compiledNode) bool {
	for _, e := range cn.incomingEdges {
		if t.isEdgeSatisfied(e) {
			return true
		}
	}
	return false
}

// skipReason prefers upstream_failed whenever a direct dependency
// failed outright; condition_skipped covers the pure routing-miss case.
func (t *runTracker) skipReason(cn *compiledNode) sdk.SkipReason {
	for _, dep := range cn.dependencies {
		st := t.states[dep].status
		if st == sdk.StatusFailed || (st == sdk.StatusSkipped && t.states[dep].reason == sdk.SkipUpstreamFailed) {
			return sdk.SkipUpstreamFailed
		}
	}
	return sdk.SkipConditionNotTaken
}

// allTerminal reports whether every node in the run has reached a
// terminal status.
func (t *runTracker) allTerminal() bool {
	for _, st := range t.states {
		switch st.status {
		case sdk.StatusCompleted, sdk.StatusFailed, sdk.StatusSkipped:
		default:
			return false
		}
	}
	return true
}
