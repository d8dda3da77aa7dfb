package acp

import (
	"context"
	"testing"

	"github.com/corebridge/acp/schema"
)

// TestClientConn_Authenticate exercises the authenticate round trip that
// follows an InitializeResponse advertising an auth method.
func TestClientConn_Authenticate(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	_, clientSide := wireAgentClient(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := clientSide.Authenticate(ctx, schema.AuthenticateRequest{MethodID: "oauth"}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

// TestClientConn_LoadSession exercises session/load resuming a prior
// session id, as opposed to minting a new one via session/new.
func TestClientConn_LoadSession(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	_, clientSide := wireAgentClient(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := clientSide.LoadSession(ctx, schema.LoadSessionRequest{SessionID: "sess-resumed", Cwd: "/tmp"}); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
}

// TestClientConn_SetSessionMode exercises session/set_mode.
func TestClientConn_SetSessionMode(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	_, clientSide := wireAgentClient(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess, err := clientSide.NewSession(ctx, schema.NewSessionRequest{Cwd: "/tmp"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := clientSide.SetSessionMode(ctx, schema.SetSessionModeRequest{SessionID: sess.SessionID, ModeID: "yolo"}); err != nil {
		t.Fatalf("SetSessionMode: %v", err)
	}
}

// TestAgentConn_FsRoundtrip exercises the agent-initiated fs/read_text_file
// and fs/write_text_file calls the client resolves.
func TestAgentConn_FsRoundtrip(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	agentSide, clientSide := wireAgentClient(t, agent, client)
	agent.conn = agentSide

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	readResp, err := agentSide.ReadTextFile(ctx, schema.ReadTextFileRequest{SessionID: "sess-0", Path: "/tmp/a.txt"})
	if err != nil {
		t.Fatalf("ReadTextFile: %v", err)
	}
	if readResp.Content != "file contents" {
		t.Errorf("Content = %q, want %q", readResp.Content, "file contents")
	}

	if _, err := agentSide.WriteTextFile(ctx, schema.WriteTextFileRequest{SessionID: "sess-0", Path: "/tmp/a.txt", Content: "new"}); err != nil {
		t.Fatalf("WriteTextFile: %v", err)
	}
}

// TestAgentConn_RequestPermissionDenied checks that a client-side denial
// surfaces to the agent as a PermissionDenied outcome rather than an error.
func TestAgentConn_RequestPermissionDenied(t *testing.T) {
	agent := newFakeAgent()
	agent.requestPerm = true
	client := newFakeClient()
	client.permissionOutcome = schema.PermissionDenied{}
	agentSide, clientSide := wireAgentClient(t, agent, client)
	agent.conn = agentSide

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess, err := clientSide.NewSession(ctx, schema.NewSessionRequest{Cwd: "/tmp"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	resp, err := clientSide.Prompt(ctx, schema.PromptRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if resp.StopReason != schema.StopRefusal {
		t.Errorf("StopReason = %q, want refusal", resp.StopReason)
	}
}
