package schema

// ClientCapabilities advertises what an editor/host supports, sent as part
// of InitializeRequest.
type ClientCapabilities struct {
	FS       FileSystemCapability `json:"fs"`
	Terminal bool                 `json:"terminal"`
}

// FileSystemCapability advertises whether the client can serve
// fs/read_text_file and fs/write_text_file requests.
type FileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// AgentCapabilities advertises what an agent supports, sent as part of
// InitializeResponse.
type AgentCapabilities struct {
	LoadSession        bool               `json:"loadSession"`
	PromptCapabilities PromptCapabilities `json:"promptCapabilities"`
	MCPCapabilities    MCPCapabilities    `json:"mcpCapabilities"`
}

// PromptCapabilities advertises which ContentBlock variants an agent
// accepts in a session/prompt request.
type PromptCapabilities struct {
	Image           bool `json:"image"`
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
}

// MCPCapabilities advertises which McpServer transports an agent can dial.
type MCPCapabilities struct {
	HTTP bool `json:"http"`
	SSE  bool `json:"sse"`
}

// AuthMethod describes one way a client can authenticate with an agent, as
// advertised in InitializeResponse.
type AuthMethod struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}
