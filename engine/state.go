package engine

import (
	"sync"

	"github.com/lyzr/flowengine/sdk"
)

// outputTable is the run's single source of truth for completed node
// results. The Run Coordinator is its only writer; handlers and the
// resolver read it concurrently through the Get/Keys methods, so every
// access is mutex-guarded (SPEC_FULL.md §4.5's single-writer
// discipline).
type outputTable struct {
	mu      sync.RWMutex
	outputs map[string]sdk.NodeOutput
}

func newOutputTable() *outputTable {
	return &outputTable{outputs: make(map[string]sdk.NodeOutput)}
}

func (t *outputTable) Get(nodeID string) (sdk.NodeOutput, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.outputs[nodeID]
	return v, ok
}

func (t *outputTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.outputs))
	for k := range t.outputs {
		keys = append(keys, k)
	}
	return keys
}

func (t *outputTable) set(nodeID string, out sdk.NodeOutput) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[nodeID] = out
}

func (t *outputTable) snapshot() map[string]sdk.NodeOutput {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]sdk.NodeOutput, len(t.outputs))
	for k, v := range t.outputs {
		out[k] = v.Clone()
	}
	return out
}
