package sdk

import (
	"context"
	"time"
)

// HandlerKind is the coarse category a registered handler declares at
// registration time. The engine uses it only to pick a default
// per-node timeout (spec.md §5): none for builtins, 60s for
// integrations, 120s for AI calls.
type HandlerKind string

const (
	HandlerKindBuiltin     HandlerKind = "builtin"
	HandlerKindIntegration HandlerKind = "integration"
	HandlerKindAI          HandlerKind = "ai"
)

// Logger is the minimal logging surface exposed to handlers, matching
// the subset of *slog.Logger-shaped loggers used across the codebase.
// With mirrors slog.Logger.With: it returns a logger carrying the given
// key/value pairs on every subsequent line, so a caller can scope a
// logger to a run or node without the interface growing one method per
// scope.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// OutputView is the read-only projection of the output table a handler
// may consult. Handlers must never mutate the table directly; the Run
// Coordinator is its sole writer.
type OutputView interface {
	Get(nodeID string) (NodeOutput, bool)
	Keys() []string
}

// HandlerContext is the uniform execution context passed to every
// handler invocation (spec.md §4.3).
type HandlerContext struct {
	Context context.Context
	RunID   string
	NodeID  string
	Outputs OutputView
	Logger  Logger
	Clock   func() time.Time
}

// Cancelled reports whether the run's cancellation signal has fired.
func (h *HandlerContext) Cancelled() bool {
	select {
	case <-h.Context.Done():
		return true
	default:
		return false
	}
}

// Handler is the single entry point every node type implements:
// execute(ctx, params, inputs) -> result | error. params is the node's
// parameter mapping after the Template Resolver has run over every
// string it contains; inputs is the assembled upstream-input bundle.
// The returned result is any value the Node Output Normalizer accepts.
type Handler func(hctx *HandlerContext, params map[string]interface{}, inputs map[string]interface{}) (interface{}, error)
