package acp

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// ConnRecorder receives connection-level instrumentation callbacks. The
// metrics package implements this against Prometheus collectors; tests and
// callers that don't care about metrics simply never set one.
type ConnRecorder interface {
	// RequestSent is called when an outbound request is enqueued.
	RequestSent(method string)
	// ResponseReceived is called when a response completes a pending call,
	// after dt has elapsed since the request was sent.
	ResponseReceived(method string, dtSeconds float64, isError bool)
	// InboundHandled is called after an inbound request's handler returns,
	// after dt has elapsed since dispatch began.
	InboundHandled(method string, dtSeconds float64, isError bool)
	// NotificationReceived is called for each dispatched inbound notification.
	NotificationReceived(method string)
}

// connConfig holds resolved construction-time configuration for a Conn.
type connConfig struct {
	maxMessageSize int
	onParseError   func(line []byte, err error)
	logger         *slog.Logger
	recorder       ConnRecorder
	tracer         trace.Tracer
}

// ConnOption configures a Conn at construction time.
type ConnOption func(*connConfig)

// WithMaxMessageSize caps the line length the framer accepts before failing
// with a framing error. Values <= 0 are ignored (the 16 MiB default applies).
func WithMaxMessageSize(n int) ConnOption {
	return func(c *connConfig) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}

// WithParseErrorHandler installs a callback invoked for lines that fail to
// decode as a JSON-RPC envelope. ReadLoop continues after invoking it — a
// malformed line is a parse error, not a framing error, unless the
// underlying scanner itself fails (handled separately via Err()).
func WithParseErrorHandler(h func(line []byte, err error)) ConnOption {
	return func(c *connConfig) {
		c.onParseError = h
	}
}

// WithLogger installs a structured logger for connection diagnostics
// (malformed lines, envelopes with neither id nor method, malformed
// session/update payloads). Responses with an unknown id are dropped
// without logging. Defaults to slog.Default() when unset.
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *connConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder installs a ConnRecorder for call/dispatch metrics. See the
// metrics package for a Prometheus-backed implementation.
func WithRecorder(r ConnRecorder) ConnOption {
	return func(c *connConfig) {
		c.recorder = r
	}
}

// WithTracer installs an OpenTelemetry tracer used to wrap outbound Call
// and inbound dispatch in spans. Defaults to a no-op tracer when unset.
func WithTracer(t trace.Tracer) ConnOption {
	return func(c *connConfig) {
		if t != nil {
			c.tracer = t
		}
	}
}

func resolveConnConfig(opts ...ConnOption) connConfig {
	c := connConfig{
		maxMessageSize: defaultMaxMessageSize,
		logger:         slog.Default(),
		tracer:         trace.NewNoopTracerProvider().Tracer("acp"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
