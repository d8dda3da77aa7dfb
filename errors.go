package acp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/corebridge/acp/internal/errfmt"
	"github.com/corebridge/acp/schema"
)

// Standard JSON-RPC 2.0 error codes, plus the ACP-specific
// request-cancelled code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeCancelled      = -32800
)

// Sentinel errors for connection lifecycle and dispatch failures.
var (
	// ErrClosed indicates the connection is closing or closed: new outbound
	// calls are rejected and all pending ones complete with this error.
	ErrClosed = errors.New("acp: connection closed")

	// ErrCancelled indicates a local outbound call was cancelled by the
	// caller before a response arrived.
	ErrCancelled = errors.New("acp: request cancelled")
)

// RPCError is a JSON-RPC 2.0 error, returned by Conn.Call when the peer
// responds with an error object, and constructible by handlers that want to
// surface a specific code instead of the default -32603.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("acp: rpc error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("acp: rpc error %d: %s", e.Code, e.Message)
}

// NewRPCError builds an *RPCError, marshaling data (if non-nil) into the
// error's Data field. Marshal failures are swallowed — the error still
// carries code and message, just without the diagnostic payload.
func NewRPCError(code int, message string, data any) *RPCError {
	e := &RPCError{Code: code, Message: message}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	return e
}

// paramsValidationError wraps the field-specific failures schema.Validate
// reports, so invalidParamsError can surface them individually instead of
// collapsing them into one opaque string.
type paramsValidationError struct {
	errs []schema.ValidationError
}

func (e *paramsValidationError) Error() string {
	parts := make([]string, 0, len(e.errs))
	for _, fe := range e.errs {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}

// invalidParamsError builds a -32602 response whose data payload
// identifies the failing field. When err came from schema.Validate (via
// unmarshalParams) the payload lists every failing field/tag pair; a plain
// decode error falls back to its message text.
func invalidParamsError(method string, err error) *RPCError {
	var verr *paramsValidationError
	if errors.As(err, &verr) {
		return NewRPCError(CodeInvalidParams, "invalid params for "+method, map[string]any{
			"fields": verr.errs,
		})
	}
	return NewRPCError(CodeInvalidParams, "invalid params for "+method, map[string]string{
		"error": err.Error(),
	})
}

func methodNotFoundError(method string) *RPCError {
	// method comes straight off the wire; sanitize before folding it into a
	// message string so a malformed peer can't inject control characters
	// into logs or downstream diagnostics.
	if clean := errfmt.SanitizeCode(method); clean != "" {
		method = clean
	}
	return NewRPCError(CodeMethodNotFound, "method not found: "+method, nil)
}

func cancelledError(method string) *RPCError {
	return NewRPCError(CodeCancelled, "request cancelled: "+method, nil)
}

// internalError maps an opaque handler error to -32603 unless it already
// carries a more specific *RPCError the handler chose.
func internalError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, ErrCancelled) {
		return cancelledError("")
	}
	// Handler errors are caller-controlled text (could wrap a subprocess's
	// stderr or a model's raw output); bound it before it crosses the wire.
	return NewRPCError(CodeInternalError, errfmt.Truncate(err.Error()), nil)
}
