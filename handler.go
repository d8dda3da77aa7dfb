package acp

import (
	"context"
	"encoding/json"

	"github.com/corebridge/acp/schema"
)

// AgentHandler implements the agent side of ACP: the methods a client can
// call on an agent. AgentSideConnection dispatches inbound requests to
// these methods and exposes the client-bound methods (session/update,
// session/request_permission, fs/*) as outbound calls.
type AgentHandler interface {
	Initialize(ctx context.Context, req schema.InitializeRequest) (schema.InitializeResponse, error)
	Authenticate(ctx context.Context, req schema.AuthenticateRequest) (schema.AuthenticateResponse, error)
	NewSession(ctx context.Context, req schema.NewSessionRequest) (schema.NewSessionResponse, error)
	LoadSession(ctx context.Context, req schema.LoadSessionRequest) (schema.LoadSessionResponse, error)
	SetSessionMode(ctx context.Context, req schema.SetSessionModeRequest) (schema.SetSessionModeResponse, error)
	Prompt(ctx context.Context, req schema.PromptRequest) (schema.PromptResponse, error)
	Cancel(ctx context.Context, sessionID string) error

	// ExtMethod handles a method outside the ACP catalog (the extension
	// channel). Implementations that don't support extensions can return a
	// CodeMethodNotFound error via NewRPCError.
	ExtMethod(ctx context.Context, method string, params json.RawMessage) (any, error)
	// ExtNotification handles a notification outside the ACP catalog.
	ExtNotification(ctx context.Context, method string, params json.RawMessage)
}

// ClientHandler implements the client side of ACP: the methods an agent
// can call on a client. ClientSideConnection dispatches inbound requests to
// these methods and exposes the agent-bound methods (initialize,
// session/*) as outbound calls.
type ClientHandler interface {
	SessionUpdate(ctx context.Context, n schema.SessionNotification)
	RequestPermission(ctx context.Context, req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, error)
	ReadTextFile(ctx context.Context, req schema.ReadTextFileRequest) (schema.ReadTextFileResponse, error)
	WriteTextFile(ctx context.Context, req schema.WriteTextFileRequest) (schema.WriteTextFileResponse, error)

	ExtMethod(ctx context.Context, method string, params json.RawMessage) (any, error)
	ExtNotification(ctx context.Context, method string, params json.RawMessage)
}
