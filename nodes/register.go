package nodes

import "github.com/lyzr/flowengine/sdk"

// registrar is the subset of engine.Engine that RegisterBuiltins needs,
// kept minimal here to avoid an import cycle between nodes and engine
// (engine imports nodes to obtain the builtins; nodes must not import
// engine back).
type registrar interface {
	Register(typeTag string, kind sdk.HandlerKind, h sdk.Handler)
}

// RegisterBuiltins registers every built-in node type (spec.md §4.3)
// on e. Callers typically invoke this once right after engine.New.
func RegisterBuiltins(e registrar) {
	e.Register("input", sdk.HandlerKindBuiltin, Input)
	e.Register("output", sdk.HandlerKindBuiltin, Output)
	e.Register("merge", sdk.HandlerKindBuiltin, Merge)
	e.Register("time", sdk.HandlerKindBuiltin, Time)
	e.Register("text_processor", sdk.HandlerKindBuiltin, TextProcessor)
	e.Register("json_handler", sdk.HandlerKindBuiltin, JSONHandler)
	e.Register("file_transformer", sdk.HandlerKindBuiltin, FileTransformer)

	cond := NewConditionHandler()
	e.Register("condition", sdk.HandlerKindBuiltin, cond.Handle)
}
