package sdk

import "fmt"

// ErrorKind is the closed taxonomy from spec.md §7.
type ErrorKind string

const (
	ErrInvalidWorkflow    ErrorKind = "invalid_workflow"
	ErrMissingInput       ErrorKind = "missing_input"
	ErrUnresolvedTemplate ErrorKind = "unresolved_template"
	ErrHandlerError       ErrorKind = "handler_error"
	ErrTimeout            ErrorKind = "timeout"
	ErrCancelled          ErrorKind = "cancelled"
	ErrUpstreamFailed     ErrorKind = "upstream_failed"
)

// EngineError is the structured error every handler and the engine
// itself surface. Sub carries a handler-reported sub-kind for
// ErrHandlerError (e.g. "auth", "rate_limit", "upstream_http", "parse").
type EngineError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Sub       string    `json:"sub,omitempty"`
	Retriable bool      `json:"retriable,omitempty"`
	cause     error
}

func (e *EngineError) Error() string {
	if e.Sub != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Sub, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.cause }

// NewError builds an EngineError, optionally wrapping an underlying cause.
func NewError(kind ErrorKind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, cause: cause}
}

// WithSub returns a copy of e with Sub set (fluent helper for handlers).
func (e *EngineError) WithSub(sub string) *EngineError {
	cp := *e
	cp.Sub = sub
	return &cp
}

// Retry returns a copy of e marked retriable.
func (e *EngineError) Retry() *EngineError {
	cp := *e
	cp.Retriable = true
	return &cp
}

// AsEngineError unwraps err into an *EngineError, synthesizing a
// handler_error wrapper around any plain error a handler returns.
func AsEngineError(err error) *EngineError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EngineError); ok {
		return ee
	}
	return &EngineError{Kind: ErrHandlerError, Message: err.Error(), cause: err}
}
