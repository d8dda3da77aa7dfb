package schema

import (
	"encoding/json"
	"fmt"
)

// SessionUpdate is the union of payloads carried inside a session/update
// notification, discriminated on "sessionUpdate". Concrete implementations
// are SessionUpdateUserMessage, SessionUpdateAgentMessage,
// SessionUpdateAgentThought, SessionUpdateToolCall,
// SessionUpdateToolCallUpdate, SessionUpdatePlan,
// SessionUpdateAvailableCommands, and SessionUpdateCurrentMode.
type SessionUpdate interface {
	sessionUpdateType() string
}

// SessionUpdateUserMessage echoes a chunk of the user's own message back
// (useful when the client doesn't already have it, e.g. resumed sessions).
type SessionUpdateUserMessage struct{ Content ContentBlock }

func (SessionUpdateUserMessage) sessionUpdateType() string { return "user_message_chunk" }

// SessionUpdateAgentMessage streams a chunk of the agent's reply.
type SessionUpdateAgentMessage struct{ Content ContentBlock }

func (SessionUpdateAgentMessage) sessionUpdateType() string { return "agent_message_chunk" }

// SessionUpdateAgentThought streams a chunk of the agent's reasoning,
// separate from its user-facing reply.
type SessionUpdateAgentThought struct{ Content ContentBlock }

func (SessionUpdateAgentThought) sessionUpdateType() string { return "agent_thought_chunk" }

// SessionUpdateToolCall announces a new tool call.
type SessionUpdateToolCall struct{ ToolCall ToolCall }

func (SessionUpdateToolCall) sessionUpdateType() string { return "tool_call" }

// SessionUpdateToolCallUpdate reports a partial update to a previously
// announced tool call.
type SessionUpdateToolCallUpdate struct{ Update ToolCallUpdate }

func (SessionUpdateToolCallUpdate) sessionUpdateType() string { return "tool_call_update" }

// SessionUpdatePlan reports the agent's current execution plan.
type SessionUpdatePlan struct{ Entries []PlanEntry }

func (SessionUpdatePlan) sessionUpdateType() string { return "plan" }

// SessionUpdateAvailableCommands reports slash-style commands the agent
// currently accepts.
type SessionUpdateAvailableCommands struct{ Commands []AvailableCommand }

func (SessionUpdateAvailableCommands) sessionUpdateType() string {
	return "available_commands_update"
}

// SessionUpdateCurrentMode reports the session's active mode (e.g.
// "ask"/"code"/"architect") after a session/set_mode call or an
// agent-initiated switch.
type SessionUpdateCurrentMode struct{ ModeID string }

func (SessionUpdateCurrentMode) sessionUpdateType() string { return "current_mode_update" }

// PlanEntry is one step of an agent's SessionUpdatePlan.
type PlanEntry struct {
	Content  string         `json:"content" validate:"required"`
	Priority PlanPriority   `json:"priority,omitempty"`
	Status   PlanEntryStatus `json:"status" validate:"required"`
}

// PlanPriority ranks a PlanEntry's importance.
type PlanPriority string

const (
	PlanPriorityHigh   PlanPriority = "high"
	PlanPriorityMedium PlanPriority = "medium"
	PlanPriorityLow    PlanPriority = "low"
)

// PlanEntryStatus tracks a PlanEntry's progress.
type PlanEntryStatus string

const (
	PlanEntryPending    PlanEntryStatus = "pending"
	PlanEntryInProgress PlanEntryStatus = "in_progress"
	PlanEntryCompleted  PlanEntryStatus = "completed"
)

// AvailableCommand describes one slash command the agent currently accepts.
type AvailableCommand struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

type sessionUpdateEnvelope struct {
	SessionUpdate string             `json:"sessionUpdate"`
	Content       json.RawMessage    `json:"content,omitempty"`
	Entries       []PlanEntry        `json:"entries,omitempty"`
	Commands      []AvailableCommand `json:"availableCommands,omitempty"`
	ModeID        string             `json:"currentModeId,omitempty"`
}

// MarshalSessionUpdate serializes a SessionUpdate with its discriminator.
func MarshalSessionUpdate(u SessionUpdate) ([]byte, error) {
	switch v := u.(type) {
	case SessionUpdateUserMessage:
		c, err := MarshalContentBlock(v.Content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), Content: c})
	case SessionUpdateAgentMessage:
		c, err := MarshalContentBlock(v.Content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), Content: c})
	case SessionUpdateAgentThought:
		c, err := MarshalContentBlock(v.Content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), Content: c})
	case SessionUpdateToolCall:
		return marshalWithExtra(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType()}, v.ToolCall)
	case SessionUpdateToolCallUpdate:
		return marshalWithExtra(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType()}, v.Update)
	case SessionUpdatePlan:
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), Entries: v.Entries})
	case SessionUpdateAvailableCommands:
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), Commands: v.Commands})
	case SessionUpdateCurrentMode:
		return json.Marshal(sessionUpdateEnvelope{SessionUpdate: u.sessionUpdateType(), ModeID: v.ModeID})
	default:
		return nil, fmt.Errorf("schema: unknown SessionUpdate type %T", u)
	}
}

// marshalWithExtra merges env's JSON object with extra's (extra being a
// ToolCall or ToolCallUpdate, which have their own discriminated-content
// marshaling) — the two never share field names so a flat merge is safe.
func marshalWithExtra(env sessionUpdateEnvelope, extra json.Marshaler) ([]byte, error) {
	base, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	extraJSON, err := extra.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var baseMap, extraMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(extraJSON, &extraMap); err != nil {
		return nil, err
	}
	for k, v := range extraMap {
		baseMap[k] = v
	}
	return json.Marshal(baseMap)
}

// UnmarshalSessionUpdate decodes raw into the SessionUpdate variant named
// by its "sessionUpdate" discriminator.
func UnmarshalSessionUpdate(raw json.RawMessage) (SessionUpdate, error) {
	var env sessionUpdateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("schema: decode session update: %w", err)
	}
	switch env.SessionUpdate {
	case "user_message_chunk":
		c, err := UnmarshalContentBlock(env.Content)
		if err != nil {
			return nil, err
		}
		return SessionUpdateUserMessage{Content: c}, nil
	case "agent_message_chunk":
		c, err := UnmarshalContentBlock(env.Content)
		if err != nil {
			return nil, err
		}
		return SessionUpdateAgentMessage{Content: c}, nil
	case "agent_thought_chunk":
		c, err := UnmarshalContentBlock(env.Content)
		if err != nil {
			return nil, err
		}
		return SessionUpdateAgentThought{Content: c}, nil
	case "tool_call":
		var tc ToolCall
		if err := json.Unmarshal(raw, &tc); err != nil {
			return nil, err
		}
		return SessionUpdateToolCall{ToolCall: tc}, nil
	case "tool_call_update":
		var tcu ToolCallUpdate
		if err := json.Unmarshal(raw, &tcu); err != nil {
			return nil, err
		}
		return SessionUpdateToolCallUpdate{Update: tcu}, nil
	case "plan":
		return SessionUpdatePlan{Entries: env.Entries}, nil
	case "available_commands_update":
		return SessionUpdateAvailableCommands{Commands: env.Commands}, nil
	case "current_mode_update":
		return SessionUpdateCurrentMode{ModeID: env.ModeID}, nil
	default:
		return nil, fmt.Errorf("schema: unknown session update kind %q", env.SessionUpdate)
	}
}
