package schema

import (
	"encoding/json"
	"fmt"
)

// ToolCallKind classifies what a tool call does, for clients that want to
// render an icon or apply a coarse permission policy without parsing the
// tool name.
type ToolCallKind string

const (
	ToolKindRead    ToolCallKind = "read"
	ToolKindEdit    ToolCallKind = "edit"
	ToolKindDelete  ToolCallKind = "delete"
	ToolKindMove    ToolCallKind = "move"
	ToolKindSearch  ToolCallKind = "search"
	ToolKindExecute ToolCallKind = "execute"
	ToolKindThink   ToolCallKind = "think"
	ToolKindFetch   ToolCallKind = "fetch"
	ToolKindOther   ToolCallKind = "other"
)

// ToolCallStatus tracks a tool call's lifecycle.
type ToolCallStatus string

const (
	ToolCallPending    ToolCallStatus = "pending"
	ToolCallInProgress ToolCallStatus = "in_progress"
	ToolCallCompleted  ToolCallStatus = "completed"
	ToolCallFailed     ToolCallStatus = "failed"
)

// ToolCallContent is the union of what a tool call reports back,
// discriminated on "type". Concrete implementations are
// ToolCallContentBlock, ToolCallDiff, and ToolCallTerminal.
type ToolCallContent interface {
	toolCallContentType() string
}

// ToolCallContentBlock wraps a regular ContentBlock inside a tool call.
type ToolCallContentBlock struct {
	Content ContentBlock
}

func (ToolCallContentBlock) toolCallContentType() string { return "content" }

// ToolCallDiff reports a file edit as an old/new text pair.
type ToolCallDiff struct {
	Path    string `json:"path" validate:"required"`
	OldText string `json:"oldText,omitempty"`
	NewText string `json:"newText" validate:"required"`
}

func (ToolCallDiff) toolCallContentType() string { return "diff" }

// ToolCallTerminal references a terminal session the tool call spawned.
type ToolCallTerminal struct {
	TerminalID string `json:"terminalId" validate:"required"`
}

func (ToolCallTerminal) toolCallContentType() string { return "terminal" }

type toolCallContentEnvelope struct {
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content,omitempty"`
	Path       string          `json:"path,omitempty"`
	OldText    string          `json:"oldText,omitempty"`
	NewText    string          `json:"newText,omitempty"`
	TerminalID string          `json:"terminalId,omitempty"`
}

// MarshalToolCallContent serializes a ToolCallContent with its discriminator.
func MarshalToolCallContent(tc ToolCallContent) ([]byte, error) {
	env := toolCallContentEnvelope{Type: tc.toolCallContentType()}
	switch v := tc.(type) {
	case ToolCallContentBlock:
		b, err := MarshalContentBlock(v.Content)
		if err != nil {
			return nil, err
		}
		env.Content = b
	case ToolCallDiff:
		env.Path, env.OldText, env.NewText = v.Path, v.OldText, v.NewText
	case ToolCallTerminal:
		env.TerminalID = v.TerminalID
	default:
		return nil, fmt.Errorf("schema: unknown ToolCallContent type %T", tc)
	}
	return json.Marshal(env)
}

// UnmarshalToolCallContent decodes raw into the ToolCallContent variant
// named by its "type" discriminator.
func UnmarshalToolCallContent(raw json.RawMessage) (ToolCallContent, error) {
	var env toolCallContentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("schema: decode tool call content: %w", err)
	}
	switch env.Type {
	case "content":
		cb, err := UnmarshalContentBlock(env.Content)
		if err != nil {
			return nil, err
		}
		return ToolCallContentBlock{Content: cb}, nil
	case "diff":
		return ToolCallDiff{Path: env.Path, OldText: env.OldText, NewText: env.NewText}, nil
	case "terminal":
		return ToolCallTerminal{TerminalID: env.TerminalID}, nil
	default:
		return nil, fmt.Errorf("schema: unknown tool call content type %q", env.Type)
	}
}

// ToolCall describes a tool invocation the agent is performing or has
// performed, as reported via a SessionUpdate.
type ToolCall struct {
	ToolCallID string            `json:"toolCallId" validate:"required"`
	Title      string            `json:"title" validate:"required"`
	Kind       ToolCallKind       `json:"kind,omitempty"`
	Status     ToolCallStatus     `json:"status" validate:"required"`
	Content    []ToolCallContent  `json:"-"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawInput   json.RawMessage    `json:"rawInput,omitempty"`
}

// ToolCallLocation names a file the tool call reads or modifies, letting a
// client highlight it in a file tree before the call completes.
type ToolCallLocation struct {
	Path string `json:"path" validate:"required"`
	Line int    `json:"line,omitempty"`
}

// ToolCallUpdate is a partial update to a previously reported ToolCall;
// every field besides ToolCallID is optional (set to apply, omitted to
// leave unchanged).
type ToolCallUpdate struct {
	ToolCallID string            `json:"toolCallId" validate:"required"`
	Title      string            `json:"title,omitempty"`
	Kind       ToolCallKind       `json:"kind,omitempty"`
	Status     ToolCallStatus     `json:"status,omitempty"`
	Content    []ToolCallContent  `json:"-"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawOutput  json.RawMessage    `json:"rawOutput,omitempty"`
}

type toolCallWire struct {
	ToolCallID string             `json:"toolCallId"`
	Title      string             `json:"title,omitempty"`
	Kind       ToolCallKind       `json:"kind,omitempty"`
	Status     ToolCallStatus     `json:"status,omitempty"`
	Content    []json.RawMessage  `json:"content,omitempty"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawInput   json.RawMessage    `json:"rawInput,omitempty"`
	RawOutput  json.RawMessage    `json:"rawOutput,omitempty"`
}

// MarshalJSON implements json.Marshaler, flattening Content into its
// discriminated wire form.
func (t ToolCall) MarshalJSON() ([]byte, error) {
	w := toolCallWire{ToolCallID: t.ToolCallID, Title: t.Title, Kind: t.Kind, Status: t.Status,
		Locations: t.Locations, RawInput: t.RawInput}
	for _, c := range t.Content {
		b, err := MarshalToolCallContent(c)
		if err != nil {
			return nil, err
		}
		w.Content = append(w.Content, b)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, expanding Content from its
// discriminated wire form.
func (t *ToolCall) UnmarshalJSON(data []byte) error {
	var w toolCallWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = ToolCall{ToolCallID: w.ToolCallID, Title: w.Title, Kind: w.Kind, Status: w.Status,
		Locations: w.Locations, RawInput: w.RawInput}
	for _, raw := range w.Content {
		c, err := UnmarshalToolCallContent(raw)
		if err != nil {
			return err
		}
		t.Content = append(t.Content, c)
	}
	return nil
}

// MarshalJSON implements json.Marshaler, flattening Content into its
// discriminated wire form.
func (t ToolCallUpdate) MarshalJSON() ([]byte, error) {
	w := toolCallWire{ToolCallID: t.ToolCallID, Title: t.Title, Kind: t.Kind, Status: t.Status,
		Locations: t.Locations, RawOutput: t.RawOutput}
	for _, c := range t.Content {
		b, err := MarshalToolCallContent(c)
		if err != nil {
			return nil, err
		}
		w.Content = append(w.Content, b)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, expanding Content from its
// discriminated wire form.
func (t *ToolCallUpdate) UnmarshalJSON(data []byte) error {
	var w toolCallWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = ToolCallUpdate{ToolCallID: w.ToolCallID, Title: w.Title, Kind: w.Kind, Status: w.Status,
		Locations: w.Locations, RawOutput: w.RawOutput}
	for _, raw := range w.Content {
		c, err := UnmarshalToolCallContent(raw)
		if err != nil {
			return err
		}
		t.Content = append(t.Content, c)
	}
	return nil
}
