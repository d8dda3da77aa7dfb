package acp

// ProtocolVersion is the ACP wire protocol version this module speaks.
const ProtocolVersion = 1

// Agent-bound method and notification names: sent by the client, handled
// by an AgentSideConnection.
const (
	MethodInitialize     = "initialize"
	MethodAuthenticate   = "authenticate"
	MethodSessionNew     = "session/new"
	MethodSessionLoad    = "session/load"
	MethodSessionSetMode = "session/set_mode"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionCancel  = "session/cancel" // notification
)

// Client-bound method and notification names: sent by the agent, handled
// by a ClientSideConnection.
const (
	MethodSessionUpdate            = "session/update" // notification
	MethodSessionRequestPermission = "session/request_permission"
	MethodFsReadTextFile           = "fs/read_text_file"
	MethodFsWriteTextFile          = "fs/write_text_file"
)

// CancelNotification is the payload of a session/cancel notification: the
// client tells the agent to stop working on a session's in-flight prompt
// turn. AgentSideConnection resolves sessionID to the pending inbound
// request via its own tracking and calls Conn.CancelInbound.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}
