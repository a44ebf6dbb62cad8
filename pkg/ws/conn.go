package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/space-operator/spo-go/internal/rpc"
	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/credential"
	"github.com/space-operator/spo-go/pkg/log"
)

type (
	// Conn is a single WebSocket session with the service. Requests are
	// correlated by id and push frames are routed to subscriptions by
	// stream id.
	//
	// Subscription handlers run on the read loop, one frame at a time. A
	// handler that waits on Send through the same Conn stalls every frame
	// behind it, including the response it waits for. Wrap such handlers
	// with Serialized
	Conn struct {
		dialer    *websocket.Dialer
		creds     credential.Provider
		submitter SignatureSubmitter
		corr      *rpc.Correlator
		reg       *rpc.Registry
		socket    *websocket.Conn
		identity  *api.Identity
		logger    *slog.Logger
		cancel    context.CancelFunc
		authDone  chan struct{}
		done      chan struct{}
		err       error
		url       string
		id        string
		mu        sync.RWMutex
		writeMu   sync.Mutex
		closeOnce sync.Once
		authOnce  sync.Once
		state     State
	}

	// State is the lifecycle position of a Conn
	State int

	result struct {
		resp *api.Response
		err  error
	}
)

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

const closeWait = time.Second

// New creates a Conn for url. Nothing is dialed until Connect
func New(url string, opts ...Option) *Conn {
	id := uuid.NewString()
	c := &Conn{
		dialer:   websocket.DefaultDialer,
		creds:    credential.Static(""),
		corr:     rpc.NewCorrelator(),
		reg:      rpc.NewRegistry(),
		logger:   slog.Default().With(log.ConnID(id)),
		authDone: make(chan struct{}),
		done:     make(chan struct{}),
		url:      url,
		id:       id,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the service and starts dispatching inbound frames. Once the
// socket is open the authentication handshake starts in the background;
// its outcome is reported through Authenticated and Identity
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.state = StateConnecting
	case StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	default:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	socket, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		c.logger.Error("Failed to connect",
			slog.String("url", c.url),
			log.Error(err))
		return fmt.Errorf("%w: %w", ErrDialFailed, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		cancel()
		_ = socket.Close()
		return ErrConnectionClosed
	}
	c.socket = socket
	c.cancel = cancel
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("Connected",
		slog.String("url", c.url))

	go c.readLoop(socket)
	go c.authenticate(runCtx)
	return nil
}

// Close ends the session. Requests still awaiting a response fail with
// ErrConnectionClosed
func (c *Conn) Close() error {
	c.mu.RLock()
	socket := c.socket
	open := c.state == StateOpen
	c.mu.RUnlock()

	if open {
		c.writeMu.Lock()
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait),
		)
		c.writeMu.Unlock()
	}
	c.teardown(nil)
	return nil
}

// State returns the current lifecycle state
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ID returns the connection id attached to log lines
func (c *Conn) ID() string {
	return c.id
}

// Identity returns the principal confirmed by the authentication handshake
func (c *Conn) Identity() (api.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return api.Identity{}, false
	}
	return *c.identity, true
}

// Authenticated is closed when the authentication attempt has finished,
// whether or not it succeeded
func (c *Conn) Authenticated() <-chan struct{} {
	return c.authDone
}

// Done is closed when the connection has been torn down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that ended the connection, or nil if it
// was closed normally
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Send writes a request and waits for the response carrying its id. It
// fails immediately with ErrNotConnected unless the connection is open.
// Cancelling ctx abandons the wait
func (c *Conn) Send(
	ctx context.Context, method api.Method, params any,
) (*api.Response, error) {
	return c.send(ctx, method, params, nil)
}

func (c *Conn) send(
	ctx context.Context, method api.Method, params any,
	onResponse func(*api.Response),
) (*api.Response, error) {
	socket, err := c.openSocket()
	if err != nil {
		return nil, err
	}

	id := c.corr.NextID()
	data, err := json.Marshal(api.Request{
		ID:     id,
		Method: method,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan result, 1)
	c.corr.Register(id, func(resp *api.Response, err error) {
		if err == nil && onResponse != nil {
			onResponse(resp)
		}
		ch <- result{resp: resp, err: err}
	})

	if err := c.write(socket, data); err != nil {
		c.corr.Forget(id)
		c.logger.Error("Failed to send request",
			log.RequestID(id),
			log.Method(method),
			log.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		if c.corr.Forget(id) {
			return nil, ctx.Err()
		}
		// the read loop already owns the resolver and will deliver
		r := <-ch
		return r.resp, r.err
	}
}

func (c *Conn) openSocket() (*websocket.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return nil, ErrNotConnected
	}
	return c.socket, nil
}

func (c *Conn) write(socket *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return socket.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = s
	}
}

func (c *Conn) readLoop(socket *websocket.Conn) {
	for {
		typ, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.teardown(err)
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		c.logger.Debug("Dropping malformed frame")
		return
	}

	if id := gjson.GetBytes(data, "id"); present(id) {
		var resp api.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("Dropping undecodable response",
				log.Error(err))
			return
		}
		if !c.corr.Resolve(api.RequestID(id.Uint()), &resp) {
			c.logger.Debug("Dropping unmatched response",
				log.RequestID(api.RequestID(id.Uint())))
		}
		return
	}

	if sid := gjson.GetBytes(data, "stream_id"); present(sid) {
		var frame api.StreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Debug("Dropping undecodable event",
				log.Error(err))
			return
		}
		c.reg.Dispatch(&frame)
		return
	}

	c.logger.Debug("Dropping unroutable frame")
}

func (c *Conn) authenticate(ctx context.Context) {
	defer c.finishAuth()

	token, err := c.creds.Token(ctx)
	if errors.Is(err, credential.ErrNoToken) {
		c.logger.Debug("No token, skipping authentication")
		return
	}
	if err != nil {
		c.logger.Error("Failed to obtain token",
			log.Error(err))
		return
	}

	resp, err := c.Send(ctx, api.MethodAuthenticate, api.AuthenticateParams{
		Token: token,
	})
	if err != nil {
		c.logger.Error("Authentication request failed",
			log.Error(err))
		return
	}
	if resp.IsErr() {
		c.logger.Error("Authentication rejected",
			log.Error(fmt.Errorf("%w: %s", ErrAuthFailed, resp.ErrMessage())))
		return
	}

	var identity api.Identity
	if err := resp.DecodeOk(&identity); err != nil {
		c.logger.Error("Invalid authentication result",
			log.Error(err))
		return
	}

	c.mu.Lock()
	if c.identity == nil {
		c.identity = &identity
	}
	c.mu.Unlock()

	c.logger.Info("Authenticated",
		slog.String("user_id", identity.UserID))
}

func (c *Conn) finishAuth() {
	c.authOnce.Do(func() {
		close(c.authDone)
	})
}

func (c *Conn) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.err = cause
		socket := c.socket
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if socket != nil {
			_ = socket.Close()
		}
		c.corr.RejectAll(ErrConnectionClosed)
		c.reg.Clear()
		c.finishAuth()
		close(c.done)

		if cause != nil {
			c.logger.Warn("Connection lost",
				log.Error(cause))
			return
		}
		c.logger.Info("Connection closed")
	})
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
