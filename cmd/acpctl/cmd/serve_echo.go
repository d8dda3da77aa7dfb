package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corebridge/acp"
	"github.com/corebridge/acp/internal/config"
	"github.com/corebridge/acp/schema"
)

var serveEchoCmd = &cobra.Command{
	Use:   "serve-echo",
	Short: "Run a minimal echo agent on stdio",
	Long: `serve-echo implements the agent side of ACP: it accepts a session,
and for every session/prompt request streams each text content block back
as an agent_message_chunk before ending the turn with stop reason
end_turn. Useful as a smoke test peer for any ACP client.`,
	RunE: runServeEcho,
}

// echoAgent is the reference acp.AgentHandler implementation.
type echoAgent struct {
	conn      *acp.AgentSideConnection
	sessionID string
}

func runServeEcho(cmd *cobra.Command, args []string) error {
	// A missing config file is fine: serve-echo needs no policy rules.
	cfg, _ := config.Load()
	logger := newLogger(cfg.LogLevel)

	agent := &echoAgent{}
	opts := []acp.ConnOption{acp.WithLogger(logger)}
	if cfg.MaxMessageBytes > 0 {
		opts = append(opts, acp.WithMaxMessageSize(cfg.MaxMessageBytes))
	}
	agent.conn = acp.NewAgentSideConnection(agent, os.Stdin, os.Stdout, opts...)

	logger.Info("acpctl serve-echo starting")
	agent.conn.Conn().ReadLoop()
	return agent.conn.Conn().Err()
}

func (a *echoAgent) Initialize(_ context.Context, req schema.InitializeRequest) (schema.InitializeResponse, error) {
	return schema.InitializeResponse{ProtocolVersion: acp.ProtocolVersion}, nil
}

func (a *echoAgent) Authenticate(_ context.Context, req schema.AuthenticateRequest) (schema.AuthenticateResponse, error) {
	return schema.AuthenticateResponse{}, nil
}

func (a *echoAgent) NewSession(_ context.Context, req schema.NewSessionRequest) (schema.NewSessionResponse, error) {
	a.sessionID = "sess-" + uuid.NewString()
	return schema.NewSessionResponse{SessionID: a.sessionID}, nil
}

func (a *echoAgent) LoadSession(_ context.Context, req schema.LoadSessionRequest) (schema.LoadSessionResponse, error) {
	a.sessionID = req.SessionID
	return schema.LoadSessionResponse{}, nil
}

func (a *echoAgent) SetSessionMode(_ context.Context, req schema.SetSessionModeRequest) (schema.SetSessionModeResponse, error) {
	return schema.SetSessionModeResponse{}, nil
}

func (a *echoAgent) Prompt(ctx context.Context, req schema.PromptRequest) (schema.PromptResponse, error) {
	for _, block := range req.Prompt {
		text, ok := block.(schema.TextContent)
		if !ok {
			continue
		}
		err := a.conn.SessionUpdate(schema.SessionNotification{
			SessionID: req.SessionID,
			Update:    schema.SessionUpdateAgentMessage{Content: schema.TextContent{Text: text.Text}},
		})
		if err != nil {
			return schema.PromptResponse{}, err
		}
		select {
		case <-ctx.Done():
			return schema.PromptResponse{StopReason: schema.StopCancelled}, nil
		default:
		}
	}
	return schema.PromptResponse{StopReason: schema.StopEndTurn}, nil
}

func (a *echoAgent) Cancel(_ context.Context, sessionID string) error {
	return nil
}

func (a *echoAgent) ExtMethod(_ context.Context, method string, params json.RawMessage) (any, error) {
	return nil, acp.NewRPCError(acp.CodeMethodNotFound, fmt.Sprintf("echo agent does not support %s", method), nil)
}

func (a *echoAgent) ExtNotification(_ context.Context, method string, params json.RawMessage) {}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
