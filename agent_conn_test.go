package acp

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/corebridge/acp/schema"
)

// wireAgentClient connects an AgentSideConnection and a ClientSideConnection
// back to back over two io.Pipes, the way a real ACP deployment wires a
// host's stdout/stdin to a spawned agent's stdin/stdout. Both ReadLoops are
// started; t.Cleanup closes both connections.
func wireAgentClient(t *testing.T, agentHandler AgentHandler, clientHandler ClientHandler) (*AgentSideConnection, *ClientSideConnection) {
	t.Helper()

	// client writes -> agent reads
	cToA_r, cToA_w := io.Pipe()
	// agent writes -> client reads
	aToC_r, aToC_w := io.Pipe()

	agentSide := NewAgentSideConnection(agentHandler, cToA_r, aToC_w)
	clientSide := NewClientSideConnection(clientHandler, aToC_r, cToA_w)

	go agentSide.Conn().ReadLoop()
	go clientSide.Conn().ReadLoop()

	t.Cleanup(func() {
		agentSide.Conn().Close()
		clientSide.Conn().Close()
	})

	return agentSide, clientSide
}

// fakeAgent implements AgentHandler with enough behavior to exercise the
// full client-facing surface: streaming updates, permission round trips,
// and cancellation.
type fakeAgent struct {
	mu       sync.Mutex
	sessions map[string]bool

	promptUpdates []schema.ContentBlock // chunks to stream before completing Prompt
	cancelled     chan string
	requestPerm   bool // if true, Prompt issues an outbound request_permission first
	conn          *AgentSideConnection
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{sessions: make(map[string]bool), cancelled: make(chan string, 8)}
}

func (a *fakeAgent) Initialize(_ context.Context, req schema.InitializeRequest) (schema.InitializeResponse, error) {
	return schema.InitializeResponse{ProtocolVersion: req.ProtocolVersion, AuthMethods: []schema.AuthMethod{}}, nil
}

func (a *fakeAgent) Authenticate(_ context.Context, req schema.AuthenticateRequest) (schema.AuthenticateResponse, error) {
	return schema.AuthenticateResponse{}, nil
}

func (a *fakeAgent) NewSession(_ context.Context, req schema.NewSessionRequest) (schema.NewSessionResponse, error) {
	a.mu.Lock()
	a.sessions["sess-0"] = true
	a.mu.Unlock()
	return schema.NewSessionResponse{SessionID: "sess-0"}, nil
}

func (a *fakeAgent) LoadSession(_ context.Context, req schema.LoadSessionRequest) (schema.LoadSessionResponse, error) {
	return schema.LoadSessionResponse{}, nil
}

func (a *fakeAgent) SetSessionMode(_ context.Context, req schema.SetSessionModeRequest) (schema.SetSessionModeResponse, error) {
	return schema.SetSessionModeResponse{}, nil
}

func (a *fakeAgent) Prompt(ctx context.Context, req schema.PromptRequest) (schema.PromptResponse, error) {
	if a.requestPerm {
		resp, err := a.conn.RequestPermission(ctx, schema.RequestPermissionRequest{
			SessionID: req.SessionID,
			ToolCall:  schema.ToolCallUpdate{ToolCallID: "tc-1", Status: schema.ToolCallPending},
			Options:   []schema.PermissionOption{{OptionID: "opt-1", Name: "Allow"}},
		})
		if err != nil {
			return schema.PromptResponse{}, err
		}
		if _, ok := resp.Outcome.(schema.PermissionAllowed); !ok {
			return schema.PromptResponse{StopReason: schema.StopRefusal}, nil
		}
	}

	for _, block := range a.promptUpdates {
		if err := a.conn.SessionUpdate(schema.SessionNotification{
			SessionID: req.SessionID,
			Update:    schema.SessionUpdateAgentMessage{Content: block},
		}); err != nil {
			return schema.PromptResponse{}, err
		}
		select {
		case <-ctx.Done():
			a.cancelled <- req.SessionID
			return schema.PromptResponse{StopReason: schema.StopCancelled}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return schema.PromptResponse{StopReason: schema.StopEndTurn}, nil
}

func (a *fakeAgent) Cancel(_ context.Context, sessionID string) error {
	return nil
}

func (a *fakeAgent) ExtMethod(_ context.Context, method string, params json.RawMessage) (any, error) {
	return map[string]string{"handled": method}, nil
}

func (a *fakeAgent) ExtNotification(_ context.Context, method string, params json.RawMessage) {}

// fakeClient implements ClientHandler, recording session updates so tests
// can assert ordering.
type fakeClient struct {
	mu      sync.Mutex
	updates []schema.SessionNotification
	seen    chan struct{}

	permissionOutcome schema.PermissionOutcome
}

func newFakeClient() *fakeClient {
	return &fakeClient{seen: make(chan struct{}, 64), permissionOutcome: schema.PermissionAllowed{OptionID: "opt-1"}}
}

func (c *fakeClient) SessionUpdate(_ context.Context, n schema.SessionNotification) {
	c.mu.Lock()
	c.updates = append(c.updates, n)
	c.mu.Unlock()
	c.seen <- struct{}{}
}

func (c *fakeClient) RequestPermission(_ context.Context, req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, error) {
	return schema.RequestPermissionResponse{Outcome: c.permissionOutcome}, nil
}

func (c *fakeClient) ReadTextFile(_ context.Context, req schema.ReadTextFileRequest) (schema.ReadTextFileResponse, error) {
	return schema.ReadTextFileResponse{Content: "file contents"}, nil
}

func (c *fakeClient) WriteTextFile(_ context.Context, req schema.WriteTextFileRequest) (schema.WriteTextFileResponse, error) {
	return schema.WriteTextFileResponse{}, nil
}

func (c *fakeClient) ExtMethod(_ context.Context, method string, params json.RawMessage) (any, error) {
	return map[string]string{"handled": method}, nil
}

func (c *fakeClient) ExtNotification(_ context.Context, method string, params json.RawMessage) {}

func TestInitializeRoundtrip(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	_, clientSide := wireAgentClient(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	resp, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: 1})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if resp.ProtocolVersion != 1 {
		t.Errorf("ProtocolVersion = %d, want 1", resp.ProtocolVersion)
	}
	if len(resp.AuthMethods) != 0 {
		t.Errorf("AuthMethods = %v, want empty", resp.AuthMethods)
	}
}

// TestStreamingPrompt: three agent_message_chunk notifications observed
// in order before the session/prompt response.
func TestStreamingPrompt(t *testing.T) {
	agent := newFakeAgent()
	agent.promptUpdates = []schema.ContentBlock{
		schema.TextContent{Text: "one"},
		schema.TextContent{Text: "two"},
		schema.TextContent{Text: "three"},
	}
	client := newFakeClient()
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

	resp, err := clientSide.Prompt(ctx, schema.PromptRequest{
		SessionID: sess.SessionID,
		Prompt:    []schema.ContentBlock{schema.TextContent{Text: "hi"}},
	})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if resp.StopReason != schema.StopEndTurn {
		t.Errorf("StopReason = %q, want end_turn", resp.StopReason)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.updates) != 3 {
		t.Fatalf("len(updates) = %d, want 3", len(client.updates))
	}
	for i, want := range []string{"one", "two", "three"} {
		msg, ok := client.updates[i].Update.(schema.SessionUpdateAgentMessage)
		if !ok {
			t.Fatalf("update[%d] type = %T, want SessionUpdateAgentMessage", i, client.updates[i].Update)
		}
		text, ok := msg.Content.(schema.TextContent)
		if !ok || text.Text != want {
			t.Errorf("update[%d] = %+v, want text %q", i, msg.Content, want)
		}
	}
}

// TestPromptCancellation: cancelling a session mid-prompt unblocks the
// local Prompt call and reaches the agent's handler as ctx cancellation.
func TestPromptCancellation(t *testing.T) {
	agent := newFakeAgent()
	agent.promptUpdates = []schema.ContentBlock{
		schema.TextContent{Text: "one"},
		schema.TextContent{Text: "two"},
		schema.TextContent{Text: "three"},
		schema.TextContent{Text: "four"},
	}
	client := newFakeClient()
	agentSide, clientSide := wireAgentClient(t, agent, client)
	agent.conn = agentSide

	ctx := context.Background()
	if _, err := clientSide.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess, err := clientSide.NewSession(ctx, schema.NewSessionRequest{Cwd: "/tmp"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	promptDone := make(chan error, 1)
	go func() {
		_, err := clientSide.Prompt(ctx, schema.PromptRequest{
			SessionID: sess.SessionID,
			Prompt:    []schema.ContentBlock{schema.TextContent{Text: "hi"}},
		})
		promptDone <- err
	}()

	<-client.seen // wait for at least one chunk before cancelling

	if err := clientSide.CancelSession(sess.SessionID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	select {
	case err := <-promptDone:
		if err == nil {
			t.Fatal("expected Prompt to fail after cancellation")
		}
	case <-time.After(testTimeout):
		t.Fatal("Prompt never returned after CancelSession")
	}

	select {
	case gotSession := <-agent.cancelled:
		if gotSession != sess.SessionID {
			t.Errorf("cancelled session = %q, want %q", gotSession, sess.SessionID)
		}
	case <-time.After(testTimeout):
		t.Fatal("agent handler never observed cancellation")
	}
}

// TestBidirectionalInterleave: the agent issues an outbound
// request_permission mid-Prompt, using its own id space (a separate Conn,
// unlike the single-Conn nested-call test in conn_test.go), and
// completion of that nested call precedes completion of the enclosing
// session/prompt call.
func TestBidirectionalInterleave(t *testing.T) {
	agent := newFakeAgent()
	agent.requestPerm = true
	client := newFakeClient()
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
	if resp.StopReason != schema.StopEndTurn {
		t.Errorf("StopReason = %q, want end_turn (permission should have been allowed)", resp.StopReason)
	}
}

// TestInvalidParamsKeepsConnectionOpen drives the wire directly, since
// schema.NewSessionRequest's MarshalJSON can't itself produce a non-object
// payload.
func TestInvalidParamsKeepsConnectionOpen(t *testing.T) {
	conn, peer := newTestConn(t)
	conn.OnMethod(MethodSessionNew, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req schema.NewSessionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, invalidParamsError(MethodSessionNew, err)
		}
		return schema.NewSessionResponse{SessionID: "sess-0"}, nil
	})
	go conn.ReadLoop()
	defer conn.Close()

	id := int64(1)
	peer.sendJSON(t, rpcMessage{JSONRPC: "2.0", ID: &id, Method: MethodSessionNew, Params: json.RawMessage(`"nope"`)})
	resp := peer.readMessage(t)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}

	// The connection stays open: a following valid request still succeeds.
	id2 := int64(2)
	peer.sendJSON(t, rpcMessage{JSONRPC: "2.0", ID: &id2, Method: MethodSessionNew, Params: json.RawMessage(`{"cwd":"/tmp"}`)})
	resp2 := peer.readMessage(t)
	if resp2.Error != nil {
		t.Fatalf("unexpected error on second request: %+v", resp2.Error)
	}
}

func TestExtensionMethodRoundtrip(t *testing.T) {
	agent := newFakeAgent()
	client := newFakeClient()
	_, clientSide := wireAgentClient(t, agent, client)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	var result map[string]string
	if err := clientSide.Conn().Call(ctx, "x/custom", map[string]int{"a": 1}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["handled"] != "x/custom" {
		t.Errorf("result = %v, want handled=x/custom", result)
	}
}
