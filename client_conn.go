package acp

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/corebridge/acp/schema"
)

// ClientSideConnection binds a ClientHandler's methods to inbound requests
// (the agent calls session/update, session/request_permission, fs/* on us)
// and exposes the agent-bound methods (initialize, session/*) as outbound
// calls the client implementation makes on the agent — the mirror image of
// AgentSideConnection.
type ClientSideConnection struct {
	conn    *Conn
	handler ClientHandler

	mu            sync.Mutex
	sessionCancel map[string]context.CancelFunc // sessionID -> cancel for its in-flight Prompt call
}

// NewClientSideConnection wires handler to r/w. Call Conn().ReadLoop
// (typically in a goroutine) to start processing inbound messages.
func NewClientSideConnection(handler ClientHandler, r io.Reader, w io.Writer, opts ...ConnOption) *ClientSideConnection {
	c := &ClientSideConnection{
		handler:       handler,
		sessionCancel: make(map[string]context.CancelFunc),
	}
	c.conn = NewConn(r, w, opts...)
	c.conn.OnNotification(MethodSessionUpdate, c.handleSessionUpdate)
	c.conn.OnMethod(MethodSessionRequestPermission, c.handleRequestPermission)
	c.conn.OnMethod(MethodFsReadTextFile, c.handleReadTextFile)
	c.conn.OnMethod(MethodFsWriteTextFile, c.handleWriteTextFile)
	c.conn.SetUnhandledMethodHandler(handler.ExtMethod)
	c.conn.SetUnhandledNotificationHandler(handler.ExtNotification)
	return c
}

// Conn returns the underlying connection, for ReadLoop/Close/Go.
func (c *ClientSideConnection) Conn() *Conn { return c.conn }

// --- Outbound: calls the client makes on the agent ---

// Initialize negotiates protocol version and capabilities.
func (c *ClientSideConnection) Initialize(ctx context.Context, req schema.InitializeRequest) (schema.InitializeResponse, error) {
	var resp schema.InitializeResponse
	err := c.conn.Call(ctx, MethodInitialize, req, &resp)
	return resp, err
}

// Authenticate selects an auth method InitializeResponse advertised.
func (c *ClientSideConnection) Authenticate(ctx context.Context, req schema.AuthenticateRequest) (schema.AuthenticateResponse, error) {
	var resp schema.AuthenticateResponse
	err := c.conn.Call(ctx, MethodAuthenticate, req, &resp)
	return resp, err
}

// NewSession starts a new agent session.
func (c *ClientSideConnection) NewSession(ctx context.Context, req schema.NewSessionRequest) (schema.NewSessionResponse, error) {
	var resp schema.NewSessionResponse
	err := c.conn.Call(ctx, MethodSessionNew, req, &resp)
	return resp, err
}

// LoadSession resumes a previously created session.
func (c *ClientSideConnection) LoadSession(ctx context.Context, req schema.LoadSessionRequest) (schema.LoadSessionResponse, error) {
	var resp schema.LoadSessionResponse
	err := c.conn.Call(ctx, MethodSessionLoad, req, &resp)
	return resp, err
}

// SetSessionMode switches a session's operating mode.
func (c *ClientSideConnection) SetSessionMode(ctx context.Context, req schema.SetSessionModeRequest) (schema.SetSessionModeResponse, error) {
	var resp schema.SetSessionModeResponse
	err := c.conn.Call(ctx, MethodSessionSetMode, req, &resp)
	return resp, err
}

// Prompt starts (or continues) a prompt turn and blocks until it completes,
// ctx is done, or CancelSession(req.SessionID) is called. Only one Prompt
// call per session should be in flight at a time — this mirrors the wire
// protocol, where session/cancel addresses a session, not a request id.
func (c *ClientSideConnection) Prompt(ctx context.Context, req schema.PromptRequest) (schema.PromptResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.sessionCancel[req.SessionID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.sessionCancel, req.SessionID)
		c.mu.Unlock()
		cancel()
	}()

	var resp schema.PromptResponse
	err := c.conn.Call(ctx, MethodSessionPrompt, req, &resp)
	return resp, err
}

// CancelSession cancels a session's in-flight Prompt call: it unblocks the
// local Prompt call with ErrCancelled and sends a session/cancel
// notification so the agent stops working. A no-op (still sends the
// notification) if no Prompt call is currently in flight for sessionID.
func (c *ClientSideConnection) CancelSession(sessionID string) error {
	c.mu.Lock()
	cancel, ok := c.sessionCancel[sessionID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return c.conn.Notify(MethodSessionCancel, CancelNotification{SessionID: sessionID})
}

// --- Inbound: the agent calling us ---

func (c *ClientSideConnection) handleSessionUpdate(ctx context.Context, raw json.RawMessage) {
	var n schema.SessionNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		c.conn.cfg.logger.Warn("acp: malformed session/update", "error", err)
		return
	}
	c.handler.SessionUpdate(ctx, n)
}

func (c *ClientSideConnection) handleRequestPermission(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.RequestPermissionRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodSessionRequestPermission, err)
	}
	return c.handler.RequestPermission(ctx, req)
}

func (c *ClientSideConnection) handleReadTextFile(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.ReadTextFileRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodFsReadTextFile, err)
	}
	return c.handler.ReadTextFile(ctx, req)
}

func (c *ClientSideConnection) handleWriteTextFile(ctx context.Context, raw json.RawMessage) (any, error) {
	var req schema.WriteTextFileRequest
	if err := unmarshalParams(raw, &req); err != nil {
		return nil, invalidParamsError(MethodFsWriteTextFile, err)
	}
	return c.handler.WriteTextFile(ctx, req)
}
