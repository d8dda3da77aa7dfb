package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corebridge/acp"
	"github.com/corebridge/acp/internal/config"
	"github.com/corebridge/acp/policy"
	"github.com/corebridge/acp/schema"
)

var dialCmd = &cobra.Command{
	Use:   "dial -- AGENT_BINARY [ARGS...]",
	Short: "Spawn an agent subprocess and drive it as a client over stdio",
	Long: `dial spawns AGENT_BINARY, performs the initialize + session/new
handshake, then reads lines from stdin and sends each as a session/prompt
request, printing streamed agent_message_chunk updates. The agent runs
with piped stdin/stdout, no pty; its stderr passes through.

Permission requests are resolved first against the policy rules in
acpctl.yaml, falling back to an interactive prompt on stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDial,
}

// dialClient is the reference acp.ClientHandler implementation.
type dialClient struct {
	policy *policy.Evaluator
	cwd    string
}

func runDial(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("acpctl: load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	ev, err := policy.NewEvaluator(cfg.Rules())
	if err != nil {
		return fmt.Errorf("acpctl: compile policy rules: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cwd, err = filepath.Abs(cwd)
	if err != nil {
		return err
	}

	subprocess := exec.Command(args[0], args[1:]...)
	subprocess.Stderr = os.Stderr
	stdin, err := subprocess.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := subprocess.StdoutPipe()
	if err != nil {
		return err
	}
	if err := subprocess.Start(); err != nil {
		return fmt.Errorf("acpctl: start %s: %w", args[0], err)
	}
	defer subprocess.Wait()
	defer stdin.Close()

	client := &dialClient{policy: ev, cwd: cwd}
	opts := []acp.ConnOption{acp.WithLogger(logger)}
	if cfg.MaxMessageBytes > 0 {
		opts = append(opts, acp.WithMaxMessageSize(cfg.MaxMessageBytes))
	}
	conn := acp.NewClientSideConnection(client, stdout, stdin, opts...)
	go conn.Conn().ReadLoop()
	defer conn.Conn().Close()

	ctx := context.Background()

	if _, err := conn.Initialize(ctx, schema.InitializeRequest{ProtocolVersion: acp.ProtocolVersion}); err != nil {
		return fmt.Errorf("acpctl: initialize: %w", err)
	}

	sess, err := conn.NewSession(ctx, schema.NewSessionRequest{Cwd: cwd})
	if err != nil {
		return fmt.Errorf("acpctl: session/new: %w", err)
	}

	return interactiveLoop(ctx, conn, sess.SessionID)
}

func interactiveLoop(ctx context.Context, conn *acp.ClientSideConnection, sessionID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		resp, err := conn.Prompt(ctx, schema.PromptRequest{
			SessionID: sessionID,
			Prompt:    []schema.ContentBlock{schema.TextContent{Text: line}},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if resp.StopReason != schema.StopEndTurn {
			fmt.Fprintf(os.Stderr, "(stopped: %s)\n", resp.StopReason)
		}
	}
}

func (c *dialClient) SessionUpdate(_ context.Context, n schema.SessionNotification) {
	switch u := n.Update.(type) {
	case schema.SessionUpdateAgentMessage:
		if text, ok := u.Content.(schema.TextContent); ok {
			fmt.Printf("| agent: %s\n", text.Text)
		}
	case schema.SessionUpdateAgentThought:
		if text, ok := u.Content.(schema.TextContent); ok {
			fmt.Printf("| thinking: %s\n", text.Text)
		}
	case schema.SessionUpdateToolCall:
		fmt.Printf("| tool call %s: %s (%s)\n", u.ToolCall.ToolCallID, u.ToolCall.Title, u.ToolCall.Status)
	case schema.SessionUpdateToolCallUpdate:
		fmt.Printf("| tool call %s update: %s\n", u.Update.ToolCallID, u.Update.Status)
	case schema.SessionUpdatePlan:
		fmt.Printf("| plan: %d step(s)\n", len(u.Entries))
	}
}

func (c *dialClient) RequestPermission(ctx context.Context, req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, error) {
	if resp, ok := c.policy.DecideToolCall(ctx, c.cwd, req); ok {
		return resp, nil
	}
	return c.promptPermission(req)
}

// promptPermission is the fallback when no policy rule matched: ask on
// stdin.
func (c *dialClient) promptPermission(req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, error) {
	fmt.Printf("permission requested for %q (%s); options:\n", req.ToolCall.Title, req.ToolCall.ToolCallID)
	for i, opt := range req.Options {
		fmt.Printf("  [%d] %s (%s)\n", i, opt.Name, opt.Kind)
	}
	fmt.Print("choose option index (blank to deny): ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return schema.RequestPermissionResponse{Outcome: schema.PermissionDenied{}}, nil
	}
	var idx int
	if _, err := fmt.Sscanf(scanner.Text(), "%d", &idx); err != nil || idx < 0 || idx >= len(req.Options) {
		return schema.RequestPermissionResponse{Outcome: schema.PermissionDenied{}}, nil
	}
	return schema.RequestPermissionResponse{Outcome: schema.PermissionAllowed{OptionID: req.Options[idx].OptionID}}, nil
}

func (c *dialClient) ReadTextFile(_ context.Context, req schema.ReadTextFileRequest) (schema.ReadTextFileResponse, error) {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return schema.ReadTextFileResponse{}, acp.NewRPCError(acp.CodeInternalError, err.Error(), nil)
	}
	return schema.ReadTextFileResponse{Content: string(data)}, nil
}

func (c *dialClient) WriteTextFile(_ context.Context, req schema.WriteTextFileRequest) (schema.WriteTextFileResponse, error) {
	if err := os.WriteFile(req.Path, []byte(req.Content), 0o644); err != nil {
		return schema.WriteTextFileResponse{}, acp.NewRPCError(acp.CodeInternalError, err.Error(), nil)
	}
	return schema.WriteTextFileResponse{}, nil
}

func (c *dialClient) ExtMethod(_ context.Context, method string, params json.RawMessage) (any, error) {
	return nil, acp.NewRPCError(acp.CodeMethodNotFound, fmt.Sprintf("dial client does not support %s", method), nil)
}

func (c *dialClient) ExtNotification(_ context.Context, method string, params json.RawMessage) {}
