// Package policy evaluates CEL expressions against an incoming
// session/request_permission call so a ClientHandler can auto-resolve
// routine tool calls instead of always surfacing them to a human.
//
// Rules compile once at construction; evaluation is cost-limited and
// bounded by a per-rule timeout so an operator-authored expression can't
// stall the permission round trip.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/corebridge/acp/schema"
)

// maxExpressionLength bounds how large an operator-authored rule may be.
const maxExpressionLength = 1024

// maxCostBudget caps the CEL runtime cost to keep a malformed rule from
// burning CPU on every permission request.
const maxCostBudget = 100_000

// evalTimeout bounds a single evaluation; a rule that runs long is treated
// as "doesn't match" rather than blocking the request/permission round
// trip indefinitely.
const evalTimeout = 2 * time.Second

// Request is the CEL-visible view of a session/request_permission call:
// flattened out of schema.RequestPermissionRequest so rule authors write
// `tool_kind == "read"` rather than reaching through nested JSON.
type Request struct {
	SessionID string
	ToolKind  string
	ToolTitle string
	Cwd       string
}

// fromSchema builds a Request from the wire types a ClientHandler receives.
func fromSchema(sessionID, cwd string, tc schema.ToolCallUpdate) Request {
	return Request{
		SessionID: sessionID,
		ToolKind:  string(tc.Kind),
		ToolTitle: tc.Title,
		Cwd:       cwd,
	}
}

// Rule pairs a CEL expression with the option it selects when the
// expression evaluates true. Rules are tried in order; the first match
// wins. SelectKind names a PermissionOption.Kind (e.g. "allow_always")
// rather than an option id, since option ids vary per agent.
type Rule struct {
	Name       string
	Expression string
	SelectKind schema.PermissionOptionKind
}

// Evaluator compiles a set of Rules once and evaluates them against
// incoming permission requests.
type Evaluator struct {
	env   *cel.Env
	rules []compiledRule
}

type compiledRule struct {
	rule Rule
	prg  cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("session_id", cel.StringType),
		cel.Variable("tool_kind", cel.StringType),
		cel.Variable("tool_title", cel.StringType),
		cel.Variable("cwd", cel.StringType),
		// starts_with is a plain global binary function rather than a
		// string extension method, so rule authors don't need ext.Strings().
		cel.Function("starts_with",
			cel.Overload("starts_with_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					s, sOk := a.Value().(string)
					prefix, pOk := b.Value().(string)
					if !sOk || !pOk {
						return types.Bool(false)
					}
					return types.Bool(len(s) >= len(prefix) && s[:len(prefix)] == prefix)
				}),
			),
		),
	)
}

// NewEvaluator compiles every rule, returning an error naming the first
// rule that fails to type-check — a broken rule set should fail fast at
// startup, not silently fall through to "ask a human" for every request.
func NewEvaluator(rules []Rule) (*Evaluator, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("policy: build CEL environment: %w", err)
	}

	e := &Evaluator{env: env}
	for _, r := range rules {
		if len(r.Expression) > maxExpressionLength {
			return nil, fmt.Errorf("policy: rule %q: expression exceeds %d characters", r.Name, maxExpressionLength)
		}
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("policy: rule %q: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(maxCostBudget))
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q: build program: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{rule: r, prg: prg})
	}
	return e, nil
}

// ErrNoMatch means no rule matched the request; the caller should fall
// back to asking a human (or its own default).
var ErrNoMatch = errors.New("policy: no rule matched")

// Decide evaluates the rule set against req, in order, and returns the
// PermissionOption kind of the first matching rule. Returns ErrNoMatch if
// nothing matched.
func (e *Evaluator) Decide(ctx context.Context, req Request) (schema.PermissionOptionKind, string, error) {
	activation := map[string]any{
		"session_id": req.SessionID,
		"tool_kind":  req.ToolKind,
		"tool_title": req.ToolTitle,
		"cwd":        req.Cwd,
	}

	for _, cr := range e.rules {
		evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
		out, _, err := cr.prg.ContextEval(evalCtx, activation)
		cancel()
		if err != nil {
			continue // a rule that errors (e.g. cost limit) is treated as non-matching, not fatal
		}
		matched, ok := out.Value().(bool)
		if ok && matched {
			return cr.rule.SelectKind, cr.rule.Name, nil
		}
	}
	return "", "", ErrNoMatch
}

// DecideToolCall is the convenience entry point a ClientHandler.RequestPermission
// implementation calls directly: it resolves req against a RequestPermissionRequest's
// tool call and option list, returning the matching PermissionOption's id.
func (e *Evaluator) DecideToolCall(ctx context.Context, cwd string, req schema.RequestPermissionRequest) (schema.RequestPermissionResponse, bool) {
	kind, _, err := e.Decide(ctx, fromSchema(req.SessionID, cwd, req.ToolCall))
	if err != nil {
		return schema.RequestPermissionResponse{}, false
	}
	for _, opt := range req.Options {
		if opt.Kind == kind {
			return schema.RequestPermissionResponse{Outcome: schema.PermissionAllowed{OptionID: opt.OptionID}}, true
		}
	}
	return schema.RequestPermissionResponse{}, false
}
