package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a bidirectional JSON-RPC 2.0 multiplexer over newline-delimited
// JSON: framing, outbound id allocation, response correlation, and inbound
// dispatch in one place.
//
// Conn serializes outbound messages (Call, Notify) via a mutex-protected
// encoder and dispatches inbound messages (responses, notifications,
// method calls) in ReadLoop. Handlers should be registered (OnMethod,
// OnNotification) before ReadLoop starts: the handler maps are not
// guarded by a lock, so registering while ReadLoop dispatches is a data race.
//
// The synchronization model: sync.Mutex guarding the writer and the
// pending/inflight tables, one goroutine per inbound request so concurrent
// requests can complete out of order, and wg-tracked background work
// (notifications with handler-initiated offload, Go) so Close can wait for
// every scheduled task to actually finish before declaring the connection
// closed.
type Conn struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
	r   io.Reader

	nextID     atomic.Int64
	pending    map[int64]chan *rpcResponse
	pendMethod map[int64]string
	pendSentAt map[int64]time.Time

	notifyHandlers map[string]func(context.Context, json.RawMessage)
	methodHandlers map[string]func(context.Context, json.RawMessage) (any, error)

	// unhandledMethod/unhandledNotification are the extension-channel
	// fallback: any method/notification name absent from the typed maps
	// above is routed here instead of failing with method-not-found. Role
	// adapters install these to reach AgentHandler.ExtMethod/
	// ExtNotification (or the Client equivalents).
	unhandledMethod       func(context.Context, string, json.RawMessage) (any, error)
	unhandledNotification func(context.Context, string, json.RawMessage)

	inflight map[int64]context.CancelFunc

	scanner *bufio.Scanner

	ctx       context.Context
	cancelCtx context.CancelFunc

	wg sync.WaitGroup // tracks handler + Go() goroutines, drained by Close

	done      chan struct{}
	readErr   atomic.Value
	closeOnce sync.Once

	cfg connConfig
}

// NewConn creates a JSON-RPC 2.0 connection reading from r and writing to
// w. Call ReadLoop (typically in a goroutine) to start processing inbound
// messages; register handlers with OnMethod/OnNotification first.
func NewConn(r io.Reader, w io.Writer, opts ...ConnOption) *Conn {
	cfg := resolveConnConfig(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		w:              w,
		r:              r,
		enc:            json.NewEncoder(w),
		pending:        make(map[int64]chan *rpcResponse),
		pendMethod:     make(map[int64]string),
		pendSentAt:     make(map[int64]time.Time),
		notifyHandlers: make(map[string]func(context.Context, json.RawMessage)),
		methodHandlers: make(map[string]func(context.Context, json.RawMessage) (any, error)),
		inflight:       make(map[int64]context.CancelFunc),
		ctx:            ctx,
		cancelCtx:      cancel,
		done:           make(chan struct{}),
		cfg:            cfg,
	}
	c.scanner = newFramer(r, c.cfg.maxMessageSize)
	return c
}

// OnNotification registers a handler for JSON-RPC notifications (no id
// field). Handlers run synchronously, one at a time, in receive order, in
// the ReadLoop goroutine — this is what gives session-update notifications
// their ordering guarantee. A handler that needs to do slow or blocking
// work should hand it off via Go instead of blocking here.
func (c *Conn) OnNotification(method string, h func(context.Context, json.RawMessage)) {
	c.notifyHandlers[method] = h
}

// OnMethod registers a handler for JSON-RPC method calls (has id, expects a
// response). Each inbound call to this method runs in its own goroutine,
// with a context that is cancelled when a matching cancellation
// notification arrives (see CancelInbound) or the connection closes — this
// is what lets concurrent requests complete out of order.
func (c *Conn) OnMethod(method string, h func(context.Context, json.RawMessage) (any, error)) {
	c.methodHandlers[method] = h
}

// SetUnhandledMethodHandler installs the extension-channel fallback for
// inbound method calls whose name isn't registered via OnMethod.
func (c *Conn) SetUnhandledMethodHandler(h func(context.Context, string, json.RawMessage) (any, error)) {
	c.unhandledMethod = h
}

// SetUnhandledNotificationHandler installs the extension-channel fallback
// for inbound notifications whose name isn't registered via OnNotification.
func (c *Conn) SetUnhandledNotificationHandler(h func(context.Context, string, json.RawMessage)) {
	c.unhandledNotification = h
}

// Go runs fn on a goroutine tracked by the connection's drain group: Close
// waits for it to return before declaring the connection closed. This is
// the entry point for blocking collaborators (a slow handler, a background
// notification consumer) to re-enter connection-managed concurrency
// without touching Conn's internals directly.
func (c *Conn) Go(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

// Call sends a JSON-RPC request and blocks until the response arrives, ctx
// expires, or the connection closes.
func (c *Conn) Call(ctx context.Context, method string, params, result any) (err error) {
	if c.isClosing() {
		return ErrClosed
	}

	id := c.nextID.Add(1)

	ch := make(chan *rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.pendMethod[id] = method
	c.pendSentAt[id] = time.Now()
	c.mu.Unlock()

	req := &rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}

	ctx, sp := c.startCallSpan(ctx, method, id)
	defer func() {
		sp.recordErr(err)
		sp.end()
	}()

	if c.cfg.recorder != nil {
		c.cfg.recorder.RequestSent(method)
	}

	if sendErr := c.send(req); sendErr != nil {
		c.forgetPending(id)
		err = fmt.Errorf("acp: send %s: %w", method, sendErr)
		return err
	}

	select {
	case resp, ok := <-ch:
		err = c.handleCallResponse(resp, ok, method, result)
		return err
	case <-ctx.Done():
		c.forgetPending(id)
		// Response may have arrived just before cancellation — drain once
		// more so a successful result isn't discarded.
		select {
		case resp, ok := <-ch:
			err = c.handleCallResponse(resp, ok, method, result)
			return err
		default:
		}
		if ctx.Err() != nil && c.ctx.Err() == nil {
			// Local cancellation of this specific outbound call, not
			// connection shutdown. Conn has no notion of which wire
			// notification (if any) should tell the peer to stop working —
			// that shape is session-scoped and belongs to the role adapter
			// (see ClientSideConnection.CancelSession). Conn only guarantees
			// the local call resolves exactly once.
			err = ErrCancelled
			return err
		}
		err = ctx.Err()
		return err
	}
}

func (c *Conn) forgetPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	delete(c.pendMethod, id)
	delete(c.pendSentAt, id)
	c.mu.Unlock()
}

func (c *Conn) handleCallResponse(resp *rpcResponse, ok bool, method string, result any) error {
	if !ok {
		return ErrClosed
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("acp: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a JSON-RPC notification (no id, no response expected).
func (c *Conn) Notify(method string, params any) error {
	if c.isClosing() {
		return ErrClosed
	}
	req := &rpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	return c.send(req)
}

// CancelInbound triggers the cancellation context installed for inbound
// request id, if one is still executing. Returns false if the id is
// unknown, which is not an error: the handler may have already completed,
// or a stale cancellation crossed its response on the wire. Role adapters
// call this from their session/cancel notification handler; Conn itself
// never hardcodes the cancellation method name.
func (c *Conn) CancelInbound(id int64) bool {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// ReadLoop reads and dispatches inbound JSON-RPC messages until the reader
// closes or an unrecoverable framing error occurs. On exit, all pending
// Call channels are closed so blocked callers fail with ErrClosed, and the
// background wait group is drained so every scheduled notification handler
// has actually finished. Must be called exactly once, typically in its own
// goroutine.
func (c *Conn) ReadLoop() {
	defer close(c.done)
	defer c.wg.Wait()
	defer c.drainPending()
	defer c.cancelCtx()

	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue // blank lines and non-JSON noise (e.g. agent banners)
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			if c.cfg.onParseError != nil {
				c.cfg.onParseError(append([]byte(nil), line...), err)
			} else {
				c.cfg.logger.Warn("acp: malformed JSON-RPC line", slog.String("error", err.Error()))
			}
			continue
		}

		c.dispatch(&msg)
	}

	if err := c.scanner.Err(); err != nil {
		c.readErr.Store(err)
	}
}

// Err returns the ReadLoop error after it exits. Returns nil if ReadLoop
// hasn't finished, or exited cleanly (EOF with no scanner error).
func (c *Conn) Err() error {
	if v := c.readErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Done returns a channel closed when ReadLoop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) isClosing() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Close begins connection shutdown: it cancels the root context (unblocking
// any in-flight handler and any call selecting on it), closes the reader if
// it's an io.Closer (unblocking the scanner), and waits for ReadLoop to
// fully drain. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancelCtx()
		if rc, ok := c.r.(io.Closer); ok {
			_ = rc.Close()
		}
		<-c.done
	})
	return c.Err()
}

// --- Internal ---

// send serializes and writes a JSON-RPC message. Thread-safe; the writer
// is the connection's sole shared mutable resource.
func (c *Conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(v)
}

// dispatch routes an inbound message per its classification.
func (c *Conn) dispatch(msg *rpcMessage) {
	switch msg.classify() {
	case kindResponse:
		c.handleResponse(msg)
	case kindRequest:
		c.handleMethodCall(msg)
	case kindNotification:
		c.handleNotification(msg)
	default:
		c.cfg.logger.Warn("acp: envelope with neither id nor method", slog.Any("raw", msg))
	}
}

func (c *Conn) handleResponse(msg *rpcMessage) {
	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	method := c.pendMethod[*msg.ID]
	sentAt, hasSentAt := c.pendSentAt[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
		delete(c.pendMethod, *msg.ID)
		delete(c.pendSentAt, *msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		return // unknown id — duplicate, stale cancellation, or unsolicited; drop
	}

	if c.cfg.recorder != nil && hasSentAt {
		c.cfg.recorder.ResponseReceived(method, time.Since(sentAt).Seconds(), msg.Error != nil)
	}

	ch <- &rpcResponse{Result: msg.Result, Error: msg.Error}
}

func (c *Conn) handleMethodCall(msg *rpcMessage) {
	h, ok := c.methodHandlers[msg.Method]
	if !ok {
		if c.unhandledMethod == nil {
			c.sendError(*msg.ID, methodNotFoundError(msg.Method))
			return
		}
		method := msg.Method
		h = func(ctx context.Context, params json.RawMessage) (any, error) {
			return c.unhandledMethod(ctx, method, params)
		}
	}

	id := *msg.ID
	params := msg.Params
	method := msg.Method

	reqCtx, cancel := context.WithCancel(c.ctx)
	reqCtx = context.WithValue(reqCtx, requestIDContextKey{}, id)
	c.mu.Lock()
	c.inflight[id] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, id)
			c.mu.Unlock()
			cancel()
		}()

		start := time.Now()
		reqCtx, sp := c.startDispatchSpan(reqCtx, method, id)
		result, err := h(reqCtx, params)
		isErr := err != nil
		sp.recordErr(err)
		sp.end()
		if c.cfg.recorder != nil {
			c.cfg.recorder.InboundHandled(method, time.Since(start).Seconds(), isErr)
		}

		if err != nil {
			if reqCtx.Err() != nil {
				c.sendError(id, cancelledError(method))
				return
			}
			c.sendError(id, internalError(err))
			return
		}
		c.sendResult(id, result)
	}()
}

func (c *Conn) handleNotification(msg *rpcMessage) {
	if c.cfg.recorder != nil {
		c.cfg.recorder.NotificationReceived(msg.Method)
	}
	h, ok := c.notifyHandlers[msg.Method]
	if !ok {
		if c.unhandledNotification != nil {
			c.unhandledNotification(c.ctx, msg.Method, msg.Params)
		}
		return // no extension fallback installed — silently ignored
	}
	h(c.ctx, msg.Params)
}

// sendResult sends a JSON-RPC success response. Errors are swallowed: this
// runs in a handler goroutine during ReadLoop, and the connection may
// already be closing — the peer will time out or observe EOF instead.
func (c *Conn) sendResult(id int64, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.sendError(id, internalError(fmt.Errorf("marshal result: %w", err)))
		return
	}
	_ = c.send(&rpcResponse{JSONRPC: "2.0", ID: &id, Result: data})
}

// sendError sends a JSON-RPC error response. See sendResult for the
// best-effort rationale.
func (c *Conn) sendError(id int64, e *RPCError) {
	_ = c.send(&rpcResponse{JSONRPC: "2.0", ID: &id, Error: &rpcError{Code: e.Code, Message: e.Message, Data: e.Data}})
}

// requestIDContextKey is the context key under which handleMethodCall
// stashes the inbound JSON-RPC request id, retrievable via
// RequestIDFromContext. Role adapters use it to correlate a session id
// (known only to the handler's typed params) with the request id
// CancelInbound needs.
type requestIDContextKey struct{}

// RequestIDFromContext returns the JSON-RPC request id associated with the
// inbound call ctx was derived from, if any.
func RequestIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(int64)
	return id, ok
}

// drainPending closes all pending Call channels so blocked callers unblock
// with ErrClosed, each exactly once.
func (c *Conn) drainPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
		delete(c.pendMethod, id)
		delete(c.pendSentAt, id)
	}
}
