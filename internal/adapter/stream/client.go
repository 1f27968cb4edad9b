// Package stream is the websocket transport for the telemetry feed: one
// socket, a connect deadline, fixed-delay reconnect, schema-checked frames and
// a rate-limited outbound queue.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
	"thoughtstream/internal/infra/tracer"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReconnectDelay = 100 * time.Millisecond
	DefaultReadLimit      = 4 << 20
	DefaultSendRate       = 5
	DefaultSendBurst      = 5

	sendQueueSize = 16
	writeTimeout  = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	URL            string
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	ReadLimit      int64
	SendRate       float64
	SendBurst      int
	Clock          clock.Clock
}

// attempt is one dial plus, if it succeeds, the connection it produced.
type attempt struct {
	id          string
	cancel      context.CancelFunc
	deadline    clock.Timer
	conn        *websocket.Conn
	sendCh      chan any
	done        chan struct{}
	closeOnce   sync.Once
	intentional bool
	timedOut    bool
}

func (a *attempt) finish() {
	a.closeOnce.Do(func() { close(a.done) })
}

// Client implements domain.StreamTransport over nhooyr.io/websocket.
type Client struct {
	opts      Options
	handlers  domain.StreamHandlers
	validator *Validator
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu             sync.Mutex
	ctx            context.Context
	current        *attempt
	reconnecting   bool
	disconnecting  bool
	reconnectTimer clock.Timer
}

var _ domain.StreamTransport = (*Client)(nil)

// NewClient creates a transport. Nothing is dialled until Connect.
func NewClient(opts Options, handlers domain.StreamHandlers, logger *slog.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, domain.NewDomainError("stream.NewClient", domain.ErrInvalidInput, "url is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.SendRate <= 0 {
		opts.SendRate = DefaultSendRate
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = DefaultSendBurst
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	return &Client{
		opts:      opts,
		handlers:  handlers,
		validator: validator,
		limiter:   rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst),
		logger:    logger.With("component", "stream"),
		ctx:       context.Background(),
	}, nil
}

// SetHandlers replaces the callbacks. Call before Connect.
func (c *Client) SetHandlers(h domain.StreamHandlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect starts dialling in the background. It is a no-op while a dial or
// connection is live, or while a deliberate disconnect is in progress.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx != nil {
		c.ctx = ctx
	}
	if c.disconnecting || c.current != nil || c.ctx.Err() != nil {
		return
	}
	c.startLocked()
}

func (c *Client) startLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	actx, cancel := context.WithCancel(c.ctx)
	a := &attempt{
		id:     newConnID(),
		cancel: cancel,
		sendCh: make(chan any, sendQueueSize),
		done:   make(chan struct{}),
	}
	a.deadline = c.opts.Clock.AfterFunc(c.opts.ConnectTimeout, func() { c.onDeadline(a) })
	c.current = a

	c.logger.Debug("stream dialing", "conn_id", a.id, "url", c.opts.URL)
	go c.run(actx, a)
}

func (c *Client) onDeadline(a *attempt) {
	c.mu.Lock()
	if c.current != a || a.conn != nil {
		c.mu.Unlock()
		return
	}
	a.timedOut = true
	handlers := c.handlers
	c.mu.Unlock()

	err := domain.NewDomainError("Client.Connect", domain.ErrConnectTimeout, c.opts.ConnectTimeout.String())
	c.logger.Warn("stream connect timeout", "conn_id", a.id, "timeout", c.opts.ConnectTimeout)
	if handlers.OnError != nil {
		handlers.OnError(err)
	}
	a.cancel()
}

func (c *Client) run(ctx context.Context, a *attempt) {
	defer a.finish()

	conn, _, err := websocket.Dial(ctx, c.opts.URL, nil)
	if err != nil {
		c.mu.Lock()
		if c.current != a || a.intentional {
			c.mu.Unlock()
			return
		}
		a.deadline.Stop()
		c.current = nil
		c.reconnecting = false
		timedOut := a.timedOut
		handlers := c.handlers
		c.mu.Unlock()

		if !timedOut {
			c.logger.Warn("stream dial failed", "conn_id", a.id, "error", err)
			if handlers.OnError != nil {
				handlers.OnError(domain.WrapOp("Client.Dial", err))
			}
		}
		c.closed(a)
		return
	}
	conn.SetReadLimit(c.opts.ReadLimit)

	c.mu.Lock()
	if c.current != a || a.intentional {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	a.deadline.Stop()
	a.conn = conn
	c.reconnecting = false
	handlers := c.handlers
	c.mu.Unlock()

	c.logger.Info("stream connected", "conn_id", a.id)
	go c.writeLoop(a)
	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}
	c.readLoop(ctx, a)
}

func (c *Client) readLoop(ctx context.Context, a *attempt) {
	for {
		_, data, err := a.conn.Read(ctx)
		if err != nil {
			c.readFailed(a, err)
			return
		}

		env, err := c.decode(ctx, a, data)
		if err != nil {
			continue
		}

		c.mu.Lock()
		live := c.current == a && !a.intentional
		handlers := c.handlers
		c.mu.Unlock()
		if !live {
			return
		}
		if handlers.OnEnvelope != nil {
			handlers.OnEnvelope(env)
		}
	}
}

func (c *Client) decode(ctx context.Context, a *attempt, data []byte) (domain.Envelope, error) {
	_, span := tracer.StartDecodeSpan(ctx, a.id, len(data))
	defer span.End()

	env, err := c.validator.Decode(data)
	if err != nil {
		tracer.RecordError(span, err)
		c.logger.Warn("stream frame dropped", "conn_id", a.id, "error", err)
		c.mu.Lock()
		handlers := c.handlers
		c.mu.Unlock()
		if handlers.OnReject != nil {
			handlers.OnReject(err)
		}
		return env, err
	}
	tracer.SetOK(span)
	return env, nil
}

func (c *Client) readFailed(a *attempt, err error) {
	c.mu.Lock()
	if c.current != a || a.intentional {
		c.mu.Unlock()
		return
	}
	c.current = nil
	handlers := c.handlers
	parent := c.ctx
	c.mu.Unlock()

	switch {
	case parent.Err() != nil:
		a.conn.CloseNow()
	case websocket.CloseStatus(err) == -1:
		c.logger.Warn("stream read failed", "conn_id", a.id, "error", err)
		if handlers.OnError != nil {
			handlers.OnError(domain.WrapOp("Client.Read", err))
		}
		a.conn.CloseNow()
	default:
		c.logger.Info("stream closed by server", "conn_id", a.id, "status", websocket.CloseStatus(err))
	}
	a.cancel()
	c.closed(a)
}

// closed runs the unintentional-close path: notify, then schedule a reconnect
// unless a manual one is underway.
func (c *Client) closed(a *attempt) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()
	if handlers.OnClose != nil {
		handlers.OnClose()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnecting || c.disconnecting || c.ctx.Err() != nil {
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.logger.Debug("stream reconnect scheduled", "conn_id", a.id, "delay", c.opts.ReconnectDelay)
	c.reconnectTimer = c.opts.Clock.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		ctx := c.ctx
		c.mu.Unlock()
		c.Connect(ctx)
	})
}

func (c *Client) writeLoop(a *attempt) {
	for {
		select {
		case <-a.done:
			return
		case payload := <-a.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, a.conn, payload)
			cancel()
			if err != nil {
				c.logger.Warn("stream write failed", "conn_id", a.id, "error", err)
				return
			}
		}
	}
}

// Disconnect closes the socket without firing OnClose or reconnecting.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnecting = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	a := c.current
	c.current = nil
	if a != nil {
		a.intentional = true
		a.deadline.Stop()
	}
	c.mu.Unlock()

	if a != nil {
		c.logger.Debug("stream disconnecting", "conn_id", a.id)
		if a.conn != nil {
			go func() {
				a.conn.Close(websocket.StatusNormalClosure, "client disconnect")
				a.cancel()
			}()
		} else {
			a.cancel()
		}
	}

	c.mu.Lock()
	c.disconnecting = false
	c.mu.Unlock()
}

// Reconnect drops the current socket and dials a fresh one. A second call
// while the new connection is still being established is a no-op.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	ctx := c.ctx
	c.mu.Unlock()

	c.Disconnect()
	c.Connect(ctx)
}

// Send queues payload for the open socket. When the socket is not open, the
// rate limit is exceeded or the queue is full, the payload is dropped with a
// warning.
func (c *Client) Send(payload any) {
	c.mu.Lock()
	a := c.current
	open := a != nil && a.conn != nil && !a.intentional
	c.mu.Unlock()

	if !open {
		c.logger.Warn("stream send skipped", "error", domain.ErrNotConnected)
		return
	}
	if !c.limiter.Allow() {
		c.logger.Warn("stream send skipped", "conn_id", a.id, "error", domain.ErrSendRateLimited)
		return
	}
	select {
	case a.sendCh <- payload:
	default:
		c.logger.Warn("stream send skipped", "conn_id", a.id, "error", fmt.Errorf("send queue full"))
	}
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.conn != nil
}

func newConnID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
