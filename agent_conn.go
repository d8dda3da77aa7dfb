package acp

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/corebridge/acp/schema"
)

// AgentSideConnection binds an AgentHandler's methods to inbound requests
// (the client calls initialize/session/* on us) and exposes the
// client-bound methods (session/update, session/request_permission, fs/*)
// as outbound calls the agent implementation makes on the client.
type AgentSideConnection struct {
	conn    *Conn
	handler AgentHandler

	mu              sync.Mutex
	promptRequestID map[string]int64 // sessionID -> inbound session/prompt request id
}

// NewAgentSideConnection wires handler to r/w and starts no goroutines;
// call Conn() and run ReadLoop yourself (typically `go conn.ReadLoop()`
// right after construction).
func NewAgentSideConnection(handler AgentHandler, r io.Reader, w io.Writer, opts ...ConnOption) *AgentSideConnection {
	a := &AgentSideConnection{
		handler:         handler,
		promptRequestID: make(map[string]int64),
	}
	a.conn = NewConn(r, w, opts...)
	a.conn.OnMethod(MethodInitialize, a.handleInitialize)
	a.conn.OnMethod(MethodAuthenticate, a.handleAuthenticate)
	a.conn.OnMethod(MethodSessionNew, a.handleNewSession)
	a.conn.OnMethod(MethodSessionLoad, a.handleLoadSession)
	a.conn.OnMethod(MethodSessionSetMode, a.handleSetSessionMode)
	a.conn.OnMethod(MethodSessionPrompt, a.handlePrompt)
	a.conn.OnNotification(MethodSessionCancel, a.handleCancel)
	a.conn.SetUnhandledMethodHandler(handler.ExtMethod)
	a.conn.SetUnhandledNotificationHandler(handler.ExtNotification)
	return a
}

// Conn returns the underlying connection, for ReadLoop/Close/Go.
func (a *AgentSideConnection) Conn() *Conn { return a.conn }

// --- Outbound: calls the agent makes on the client ---

// SessionUpdate sends a session/update notification to the client.
func (a *AgentSideConnection) SessionUpdate(n schema.SessionNotification) error {
	return a.conn.Notify(MethodSessionUpdate, n)
}

// RequestPermission asks the client to approve or deny a tool call.
func (a *AgentSideConnection) RequestPermission(ctx context.Context, req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, error) {
	var resp schema.RequestPermissionResponse
	err := a.conn.Call(ctx, MethodSessionRequestPermission, req, &resp)
	return resp, err
}

// ReadTextFile asks the client to read a file from the session's workspace.
func (a *AgentSideConnection) ReadTextFile(ctx context.Context, req schema.ReadTextFileRequest) (schema.ReadTextFileResponse, error) {
	var resp schema.ReadTextFileResponse
	err := a.conn.Call(ctx, MethodFsReadTextFile, req, &resp)
	return resp, err
}

// WriteTextFile asks the client to write a file in the session's workspace.
func (a *AgentSideConnection) WriteTextFile(ctx context.Context, req schema.WriteTextFileRequest) (schema.WriteTextFileResponse, error) {
	var resp schema.WriteTextFileResponse
	err := a.conn.Call(ctx, MethodFsWriteTextFile, req, &resp)
	return resp, err
}

// --- Inbound: the client calling us ---

func (a *AgentSideConnection) handleInitialize(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.InitializeRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodInitialize, err)
	}
	return a.handler.Initialize(ctx, req)
}

func (a *AgentSideConnection) handleAuthenticate(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.AuthenticateRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodAuthenticate, err)
	}
	return a.handler.Authenticate(ctx, req)
}

func (a *AgentSideConnection) handleNewSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.NewSessionRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodSessionNew, err)
	}
	return a.handler.NewSession(ctx, req)
}

func (a *AgentSideConnection) handleLoadSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.LoadSessionRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodSessionLoad, err)
	}
	return a.handler.LoadSession(ctx, req)
}

func (a *AgentSideConnection) handleSetSessionMode(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.SetSessionModeRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodSessionSetMode, err)
	}
	return a.handler.SetSessionMode(ctx, req)
}

func (a *AgentSideConnection) handlePrompt(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.PromptRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodSessionPrompt, err)
	}

	if id, ok := RequestIDFromContext(ctx); ok {
		a.mu.Lock()
		a.promptRequestID[req.SessionID] = id
		a.mu.Unlock()
		defer func() {
			a.mu.Lock()
			delete(a.promptRequestID, req.SessionID)
			a.mu.Unlock()
		}()
	}

	return a.handler.Prompt(ctx, req)
}

// handleCancel is the session/cancel notification handler: it cancels the
// in-flight session/prompt request's context via Conn.CancelInbound, and
// additionally invokes AgentHandler.Cancel so an implementation doing work
// off the request's own goroutine (a subprocess, a background worker) has a
// chance to tear it down immediately rather than waiting for ctx.Done() to
// be observed.
func (a *AgentSideConnection) handleCancel(ctx context.Context, raw json.RawMessage) {
	var n CancelNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return
	}

	a.mu.Lock()
	id, ok := a.promptRequestID[n.SessionID]
	a.mu.Unlock()
	if ok {
		a.conn.CancelInbound(id)
	}

	a.conn.Go(func(ctx context.Context) {
		_ = a.handler.Cancel(ctx, n.SessionID)
	})
}

// unmarshalParams decodes raw into v, treating an empty/absent params as a
// zero-value v rather than an error (several ACP methods take no params).
// A successful decode is then checked against v's `validate` struct tags,
// so a structurally valid but semantically incomplete request (e.g.
// session/new with an empty cwd) is rejected the same way a malformed one
// is, with the failing field named in the -32602 response.
func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	if errs := schema.Validate(v); errs != nil {
		return &paramsValidationError{errs: errs}
	}
	return nil
}
