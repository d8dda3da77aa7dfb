package schema

import (
	"encoding/json"
	"fmt"
)

// McpServer is the union of ways a client can describe an MCP server to an
// agent in a session/new or session/load request (the zed-industries ACP
// schema's McpServer1/2/3). Stdio is recognized by its "command" field
// rather than by a discriminator; Http and Sse share the same "url"-shaped
// fields, so they carry an explicit "type" discriminator ("http"/"sse") to
// stay distinguishable.
type McpServer interface {
	mcpServerShape() string
}

// McpServerStdio launches an MCP server as a local subprocess communicating
// over stdio.
type McpServerStdio struct {
	Name    string            `json:"name" validate:"required"`
	Command string            `json:"command" validate:"required"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (McpServerStdio) mcpServerShape() string { return "stdio" }

// McpServerHTTP connects to a remote MCP server over streamable HTTP.
type McpServerHTTP struct {
	Name    string            `json:"name" validate:"required"`
	URL     string            `json:"url" validate:"required"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (McpServerHTTP) mcpServerShape() string { return "http" }

// McpServerSSE connects to a remote MCP server over server-sent events.
type McpServerSSE struct {
	Name    string            `json:"name" validate:"required"`
	URL     string            `json:"url" validate:"required"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (McpServerSSE) mcpServerShape() string { return "sse" }

type mcpServerEnvelope struct {
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Type    string            `json:"type,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// MarshalMcpServer serializes an McpServer. Stdio is shape-discriminated
// (no peer needs to tell it apart from anything else — it's the only
// variant with a "command" field); Http and Sse both carry "url", so they
// also get an explicit "type" so UnmarshalMcpServer can tell them apart.
func MarshalMcpServer(m McpServer) ([]byte, error) {
	switch v := m.(type) {
	case McpServerStdio:
		return json.Marshal(mcpServerEnvelope{Name: v.Name, Command: v.Command, Args: v.Args, Env: v.Env})
	case McpServerHTTP:
		return json.Marshal(mcpServerEnvelope{Name: v.Name, Type: "http", URL: v.URL, Headers: v.Headers})
	case McpServerSSE:
		return json.Marshal(mcpServerEnvelope{Name: v.Name, Type: "sse", URL: v.URL, Headers: v.Headers})
	default:
		return nil, fmt.Errorf("schema: unknown McpServer type %T", m)
	}
}

// UnmarshalMcpServer decodes raw by shape first: "command" present means
// Stdio. Otherwise it's url-shaped, and "type" picks Http vs Sse — "http" or
// absent (for peers that predate the discriminator) defaults to Http, "sse"
// selects Sse.
func UnmarshalMcpServer(raw json.RawMessage) (McpServer, error) {
	var env mcpServerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("schema: decode mcp server: %w", err)
	}
	switch {
	case env.Command != "":
		return McpServerStdio{Name: env.Name, Command: env.Command, Args: env.Args, Env: env.Env}, nil
	case env.URL != "" && env.Type == "sse":
		return McpServerSSE{Name: env.Name, URL: env.URL, Headers: env.Headers}, nil
	case env.URL != "":
		return McpServerHTTP{Name: env.Name, URL: env.URL, Headers: env.Headers}, nil
	default:
		return nil, fmt.Errorf("schema: mcp server %q has neither command nor url", env.Name)
	}
}
