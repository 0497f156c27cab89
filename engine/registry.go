package engine

import (
	"fmt"
	"time"

	"github.com/lyzr/flowengine/sdk"
)

// defaultTimeouts maps a handler's declared kind to its default
// per-node deadline (SPEC_FULL.md §4.5/§5): none for builtins,
// 60s for integrations, 120s for AI calls. A Registry starts from this
// table and Config (INTEGRATION_TIMEOUT/AI_TIMEOUT) can override it
// through SetTimeout.
var defaultTimeouts = map[sdk.HandlerKind]time.Duration{
	sdk.HandlerKindBuiltin:     0,
	sdk.HandlerKindIntegration: 60 * time.Second,
	sdk.HandlerKindAI:          120 * time.Second,
}

type registration struct {
	handler sdk.Handler
	kind    sdk.HandlerKind
}

// Registry maps a node's type tag to the handler that executes it.
type Registry struct {
	entries  map[string]registration
	timeouts map[sdk.HandlerKind]time.Duration
}

// NewRegistry returns an empty Registry seeded with the default
// per-kind timeouts.
func NewRegistry() *Registry {
	timeouts := make(map[sdk.HandlerKind]time.Duration, len(defaultTimeouts))
	for kind, d := range defaultTimeouts {
		timeouts[kind] = d
	}
	return &Registry{entries: make(map[string]registration), timeouts: timeouts}
}

// SetTimeout overrides the default deadline applied to every handler
// registered under kind, used to thread Config.IntegrationTimeout/
// Config.AITimeout through to dispatch (engine.WithTimeouts).
func (r *Registry) SetTimeout(kind sdk.HandlerKind, d time.Duration) {
	r.timeouts[kind] = d
}

// Register binds typeTag to handler under kind. Registering the same
// typeTag twice replaces the previous binding, matching the teacher
// project's late-binding node registration.
func (r *Registry) Register(typeTag string, kind sdk.HandlerKind, handler sdk.Handler) {
	r.entries[typeTag] = registration{handler: handler, kind: kind}
}

// Lookup returns the handler and default timeout registered for typeTag.
func (r *Registry) Lookup(typeTag string) (sdk.Handler, time.Duration, error) {
	reg, ok := r.entries[typeTag]
	if !ok {
		return nil, 0, sdk.NewError(sdk.ErrInvalidWorkflow, fmt.Sprintf("no handler registered for node type %q", typeTag), nil)
	}
	return reg.handler, r.timeouts[reg.kind], nil
}

// Has reports whether typeTag has a registered handler.
func (r *Registry) Has(typeTag string) bool {
	_, ok := r.entries[typeTag]
	return ok
}
