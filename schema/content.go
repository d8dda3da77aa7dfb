// Package schema holds the typed data model for Agent Client Protocol
// messages: request/response structs for every RPC method plus the
// discriminated unions (ContentBlock, SessionUpdate, ToolCallContent,
// PermissionOutcome, McpServer) that appear inside them.
package schema

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is the union of content a message, prompt, or tool call can
// carry, discriminated on its "type" field. Concrete implementations are
// TextContent, ImageContent, AudioContent, ResourceLink, and
// EmbeddedResource.
type ContentBlock interface {
	contentBlockType() string
}

// TextContent is plain text content.
type TextContent struct {
	Text string `json:"text" validate:"required"`
}

func (TextContent) contentBlockType() string { return "text" }

// ImageContent is inline base64-encoded image data.
type ImageContent struct {
	Data     string `json:"data" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
	URI      string `json:"uri,omitempty"`
}

func (ImageContent) contentBlockType() string { return "image" }

// AudioContent is inline base64-encoded audio data.
type AudioContent struct {
	Data     string `json:"data" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
}

func (AudioContent) contentBlockType() string { return "audio" }

// ResourceLink references an external resource by URI without embedding
// its content (mirrors MCP's ResourceLink).
type ResourceLink struct {
	Name        string `json:"name" validate:"required"`
	URI         string `json:"uri" validate:"required"`
	MimeType    string `json:"mimeType,omitempty"`
	Description string `json:"description,omitempty"`
}

func (ResourceLink) contentBlockType() string { return "resource" }

// EmbeddedResource carries a resource's contents inline (mirrors MCP's
// EmbeddedResource).
type EmbeddedResource struct {
	URI      string `json:"uri" validate:"required"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

func (EmbeddedResource) contentBlockType() string { return "embedded_resource" }

// contentBlockEnvelope is the flat wire shape covering every ContentBlock
// variant's fields, keyed by the "type" discriminator. A flat struct (not
// embedding) is deliberate: several variants share field names (Data,
// MimeType) which would otherwise collide as ambiguous promoted fields.
type contentBlockEnvelope struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Data        string `json:"data,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Blob        string `json:"blob,omitempty"`
}

// MarshalContentBlock serializes a ContentBlock with its discriminator.
func MarshalContentBlock(cb ContentBlock) ([]byte, error) {
	if cb == nil {
		return json.Marshal(nil)
	}
	env := contentBlockEnvelope{Type: cb.contentBlockType()}
	switch v := cb.(type) {
	case TextContent:
		env.Text = v.Text
	case ImageContent:
		env.Data, env.MimeType, env.URI = v.Data, v.MimeType, v.URI
	case AudioContent:
		env.Data, env.MimeType = v.Data, v.MimeType
	case ResourceLink:
		env.Name, env.URI, env.MimeType, env.Description = v.Name, v.URI, v.MimeType, v.Description
	case EmbeddedResource:
		env.URI, env.MimeType, env.Text, env.Blob = v.URI, v.MimeType, v.Text, v.Blob
	default:
		return nil, fmt.Errorf("schema: unknown ContentBlock type %T", cb)
	}
	return json.Marshal(env)
}

// UnmarshalContentBlock decodes raw into the ContentBlock variant named by
// its "type" discriminator.
func UnmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var env contentBlockEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("schema: decode content block: %w", err)
	}
	switch env.Type {
	case "text":
		return TextContent{Text: env.Text}, nil
	case "image":
		return ImageContent{Data: env.Data, MimeType: env.MimeType, URI: env.URI}, nil
	case "audio":
		return AudioContent{Data: env.Data, MimeType: env.MimeType}, nil
	case "resource":
		return ResourceLink{Name: env.Name, URI: env.URI, MimeType: env.MimeType, Description: env.Description}, nil
	case "embedded_resource":
		return EmbeddedResource{URI: env.URI, MimeType: env.MimeType, Text: env.Text, Blob: env.Blob}, nil
	default:
		return nil, fmt.Errorf("schema: unknown content block type %q", env.Type)
	}
}
