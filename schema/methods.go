package schema

import "encoding/json"

// InitializeRequest is the first message any ACP connection exchanges:
// the client declares its protocol version and capabilities.
type InitializeRequest struct {
	ProtocolVersion    int                `json:"protocolVersion" validate:"required"`
	ClientCapabilities ClientCapabilities `json:"clientCapabilities"`
}

// InitializeResponse is the agent's reply: the version it will speak for
// the rest of the connection, its capabilities, and any auth methods the
// client may need to invoke before session/new will succeed.
type InitializeResponse struct {
	ProtocolVersion   int               `json:"protocolVersion" validate:"required"`
	AgentCapabilities AgentCapabilities `json:"agentCapabilities"`
	AuthMethods       []AuthMethod      `json:"authMethods,omitempty"`
}

// AuthenticateRequest selects one of the auth methods InitializeResponse
// advertised.
type AuthenticateRequest struct {
	MethodID string `json:"methodId" validate:"required"`
}

// AuthenticateResponse confirms authentication succeeded. An error
// response (rather than this being false) signals failure.
type AuthenticateResponse struct{}

// NewSessionRequest asks the agent to start a new session rooted at Cwd,
// optionally wiring in MCP servers the client has configured.
type NewSessionRequest struct {
	Cwd        string      `json:"cwd" validate:"required"`
	McpServers []McpServer `json:"-"`
}

type newSessionRequestWire struct {
	Cwd        string            `json:"cwd"`
	McpServers []json.RawMessage `json:"mcpServers,omitempty"`
}

// MarshalJSON implements json.Marshaler, flattening McpServers into their
// shape-discriminated wire form.
func (r NewSessionRequest) MarshalJSON() ([]byte, error) {
	w := newSessionRequestWire{Cwd: r.Cwd}
	for _, s := range r.McpServers {
		b, err := MarshalMcpServer(s)
		if err != nil {
			return nil, err
		}
		w.McpServers = append(w.McpServers, b)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, expanding McpServers from
// their shape-discriminated wire form.
func (r *NewSessionRequest) UnmarshalJSON(data []byte) error {
	var w newSessionRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Cwd = w.Cwd
	r.McpServers = nil
	for _, raw := range w.McpServers {
		s, err := UnmarshalMcpServer(raw)
		if err != nil {
			return err
		}
		r.McpServers = append(r.McpServers, s)
	}
	return nil
}

// NewSessionResponse returns the opaque id the client must use for every
// subsequent request scoped to this session.
type NewSessionResponse struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// LoadSessionRequest asks the agent to resume a previously created
// session, re-supplying the working directory and MCP servers since the
// agent may have restarted in between.
type LoadSessionRequest struct {
	SessionID  string      `json:"sessionId" validate:"required"`
	Cwd        string      `json:"cwd" validate:"required"`
	McpServers []McpServer `json:"-"`
}

// MarshalJSON implements json.Marshaler, matching NewSessionRequest's
// McpServers flattening.
func (r LoadSessionRequest) MarshalJSON() ([]byte, error) {
	type wire struct {
		SessionID  string            `json:"sessionId"`
		Cwd        string            `json:"cwd"`
		McpServers []json.RawMessage `json:"mcpServers,omitempty"`
	}
	w := wire{SessionID: r.SessionID, Cwd: r.Cwd}
	for _, s := range r.McpServers {
		b, err := MarshalMcpServer(s)
		if err != nil {
			return nil, err
		}
		w.McpServers = append(w.McpServers, b)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, matching NewSessionRequest's
// McpServers expansion.
func (r *LoadSessionRequest) UnmarshalJSON(data []byte) error {
	var w struct {
		SessionID  string            `json:"sessionId"`
		Cwd        string            `json:"cwd"`
		McpServers []json.RawMessage `json:"mcpServers,omitempty"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.SessionID, r.Cwd = w.SessionID, w.Cwd
	r.McpServers = nil
	for _, raw := range w.McpServers {
		s, err := UnmarshalMcpServer(raw)
		if err != nil {
			return err
		}
		r.McpServers = append(r.McpServers, s)
	}
	return nil
}

// LoadSessionResponse confirms the session resumed; AgentCapabilities is
// re-sent in case loading triggered an agent-side config change.
type LoadSessionResponse struct {
	AgentCapabilities AgentCapabilities `json:"agentCapabilities"`
}

// SetSessionModeRequest switches a session into a different operating mode
// (e.g. "ask" vs "code") if the agent advertises more than one.
type SetSessionModeRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	ModeID    string `json:"modeId" validate:"required"`
}

// SetSessionModeResponse is empty; success is the absence of an error.
type SetSessionModeResponse struct{}

// PromptRequest starts (or continues) a prompt turn on an existing session.
type PromptRequest struct {
	SessionID string         `json:"sessionId" validate:"required"`
	Prompt    []ContentBlock `json:"-"`
}

type promptRequestWire struct {
	SessionID string            `json:"sessionId"`
	Prompt    []json.RawMessage `json:"prompt"`
}

// MarshalJSON implements json.Marshaler, flattening Prompt into its
// discriminated wire form.
func (r PromptRequest) MarshalJSON() ([]byte, error) {
	w := promptRequestWire{SessionID: r.SessionID}
	for _, c := range r.Prompt {
		b, err := MarshalContentBlock(c)
		if err != nil {
			return nil, err
		}
		w.Prompt = append(w.Prompt, b)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, expanding Prompt from its
// discriminated wire form.
func (r *PromptRequest) UnmarshalJSON(data []byte) error {
	var w promptRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.SessionID = w.SessionID
	r.Prompt = nil
	for _, raw := range w.Prompt {
		c, err := UnmarshalContentBlock(raw)
		if err != nil {
			return err
		}
		r.Prompt = append(r.Prompt, c)
	}
	return nil
}

// StopReason explains why a prompt turn ended.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopMaxTokens       StopReason = "max_tokens"
	StopMaxTurnRequests StopReason = "max_turn_requests"
	StopRefusal         StopReason = "refusal"
	StopCancelled       StopReason = "cancelled"
)

// PromptResponse concludes a prompt turn.
type PromptResponse struct {
	StopReason StopReason `json:"stopReason" validate:"required"`
	Usage      *Usage     `json:"usage,omitempty"`
}

// SessionNotification is the params of a session/update notification: a
// SessionUpdate scoped to one session.
type SessionNotification struct {
	SessionID string        `json:"sessionId" validate:"required"`
	Update    SessionUpdate `json:"-"`
}

type sessionNotificationWire struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

// MarshalJSON implements json.Marshaler, flattening Update into its
// discriminated wire form.
func (n SessionNotification) MarshalJSON() ([]byte, error) {
	b, err := MarshalSessionUpdate(n.Update)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionNotificationWire{SessionID: n.SessionID, Update: b})
}

// UnmarshalJSON implements json.Unmarshaler, expanding Update from its
// discriminated wire form.
func (n *SessionNotification) UnmarshalJSON(data []byte) error {
	var w sessionNotificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	u, err := UnmarshalSessionUpdate(w.Update)
	if err != nil {
		return err
	}
	n.SessionID, n.Update = w.SessionID, u
	return nil
}

// RequestPermissionRequest asks the client to approve or deny a tool call.
type RequestPermissionRequest struct {
	SessionID string             `json:"sessionId" validate:"required"`
	ToolCall  ToolCallUpdate     `json:"toolCall"`
	Options   []PermissionOption `json:"options" validate:"required,min=1"`
}

// RequestPermissionResponse carries the resolved PermissionOutcome.
type RequestPermissionResponse struct {
	Outcome PermissionOutcome `json:"-"`
}

type requestPermissionResponseWire struct {
	Outcome json.RawMessage `json:"outcome"`
}

// MarshalJSON implements json.Marshaler, flattening Outcome into its
// discriminated wire form.
func (r RequestPermissionResponse) MarshalJSON() ([]byte, error) {
	b, err := MarshalPermissionOutcome(r.Outcome)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requestPermissionResponseWire{Outcome: b})
}

// UnmarshalJSON implements json.Unmarshaler, expanding Outcome from its
// discriminated wire form.
func (r *RequestPermissionResponse) UnmarshalJSON(data []byte) error {
	var w requestPermissionResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	o, err := UnmarshalPermissionOutcome(w.Outcome)
	if err != nil {
		return err
	}
	r.Outcome = o
	return nil
}

// ReadTextFileRequest asks the client to read a file from the session's
// workspace, optionally a bounded line range.
type ReadTextFileRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Path      string `json:"path" validate:"required"`
	Line      int    `json:"line,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ReadTextFileResponse returns the file's content.
type ReadTextFileResponse struct {
	Content string `json:"content"`
}

// WriteTextFileRequest asks the client to write (creating or overwriting)
// a file in the session's workspace.
type WriteTextFileRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Path      string `json:"path" validate:"required"`
	Content   string `json:"content"`
}

// WriteTextFileResponse is empty; success is the absence of an error.
type WriteTextFileResponse struct{}
