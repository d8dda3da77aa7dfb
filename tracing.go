package acp

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// span wraps an OpenTelemetry span so call sites can record the eventual
// outcome with one call before ending it.
type span struct {
	s trace.Span
}

// recordErr marks the span as failed if err is non-nil. Call it before end,
// once the call site actually knows its outcome.
func (sp span) recordErr(err error) {
	if sp.s == nil || err == nil {
		return
	}
	sp.s.RecordError(err)
	sp.s.SetStatus(codes.Error, err.Error())
}

func (sp span) end() {
	if sp.s == nil {
		return
	}
	sp.s.End()
}

// startCallSpan opens a client span around an outbound Call: one span per
// request/response round trip.
func (c *Conn) startCallSpan(ctx context.Context, method string, id int64) (context.Context, span) {
	ctx, s := c.cfg.tracer.Start(ctx, "acp.call/"+method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("acp.method", method),
			attribute.String("acp.request_id", strconv.FormatInt(id, 10)),
		),
	)
	return ctx, span{s: s}
}

// startDispatchSpan opens a server span around an inbound method handler.
func (c *Conn) startDispatchSpan(ctx context.Context, method string, id int64) (context.Context, span) {
	ctx, s := c.cfg.tracer.Start(ctx, "acp.dispatch/"+method, trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("acp.method", method),
			attribute.String("acp.request_id", strconv.FormatInt(id, 10)),
		),
	)
	return ctx, span{s: s}
}
