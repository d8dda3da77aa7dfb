package policy

import (
	"context"
	"testing"

	"github.com/corebridge/acp/schema"
)

func TestEvaluator_DecideFirstMatchWins(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Name: "allow-reads", Expression: `tool_kind == "read"`, SelectKind: schema.PermissionKindAllowAlways},
		{Name: "deny-deletes", Expression: `tool_kind == "delete"`, SelectKind: schema.PermissionKindRejectAlways},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	kind, name, err := ev.Decide(context.Background(), Request{ToolKind: "read", ToolTitle: "ls"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if kind != schema.PermissionKindAllowAlways || name != "allow-reads" {
		t.Errorf("kind=%q name=%q, want allow_always/allow-reads", kind, name)
	}
}

func TestEvaluator_DecideNoMatch(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Name: "allow-reads", Expression: `tool_kind == "read"`, SelectKind: schema.PermissionKindAllowAlways},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	_, _, err = ev.Decide(context.Background(), Request{ToolKind: "execute"})
	if err != ErrNoMatch {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestEvaluator_DecideStartsWith(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Name: "allow-ls", Expression: `starts_with(tool_title, "ls ")`, SelectKind: schema.PermissionKindAllowOnce},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	kind, _, err := ev.Decide(context.Background(), Request{ToolTitle: "ls -la /tmp"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if kind != schema.PermissionKindAllowOnce {
		t.Errorf("kind = %q, want allow_once", kind)
	}

	_, _, err = ev.Decide(context.Background(), Request{ToolTitle: "rm -rf /tmp"})
	if err != ErrNoMatch {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestEvaluator_NewEvaluatorRejectsBadRule(t *testing.T) {
	_, err := NewEvaluator([]Rule{
		{Name: "broken", Expression: `tool_kind ===`, SelectKind: schema.PermissionKindAllowOnce},
	})
	if err == nil {
		t.Fatal("expected a compile error for a malformed rule")
	}
}

func TestEvaluator_DecideToolCall(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Name: "allow-reads", Expression: `tool_kind == "read"`, SelectKind: schema.PermissionKindAllowAlways},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	req := schema.RequestPermissionRequest{
		SessionID: "sess-0",
		ToolCall:  schema.ToolCallUpdate{ToolCallID: "tc-1", Kind: schema.ToolKindRead, Title: "cat file.go"},
		Options: []schema.PermissionOption{
			{OptionID: "opt-allow", Name: "Allow", Kind: schema.PermissionKindAllowAlways},
			{OptionID: "opt-deny", Name: "Deny", Kind: schema.PermissionKindRejectOnce},
		},
	}

	resp, ok := ev.DecideToolCall(context.Background(), "/tmp", req)
	if !ok {
		t.Fatal("expected a decision")
	}
	allowed, ok := resp.Outcome.(schema.PermissionAllowed)
	if !ok {
		t.Fatalf("outcome type = %T, want PermissionAllowed", resp.Outcome)
	}
	if allowed.OptionID != "opt-allow" {
		t.Errorf("optionID = %q, want opt-allow", allowed.OptionID)
	}
}

func TestEvaluator_DecideToolCallNoMatchingOption(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Name: "allow-reads", Expression: `tool_kind == "read"`, SelectKind: schema.PermissionKindAllowAlways},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	req := schema.RequestPermissionRequest{
		SessionID: "sess-0",
		ToolCall:  schema.ToolCallUpdate{ToolCallID: "tc-1", Kind: schema.ToolKindRead, Title: "cat file.go"},
		Options: []schema.PermissionOption{
			{OptionID: "opt-deny", Name: "Deny", Kind: schema.PermissionKindRejectOnce},
		},
	}

	if _, ok := ev.DecideToolCall(context.Background(), "/tmp", req); ok {
		t.Fatal("expected no decision when no option matches the rule's SelectKind")
	}
}
