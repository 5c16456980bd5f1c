package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/shared/protocol"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"go.uber.org/zap"
)

// Frame is the envelope the router carries; Data is one encoded message.
type Frame struct {
	Data []byte
}

const (
	inboundQueueSize  = 512
	outboundQueueSize = 256
)

// Client manages a WebSocket connection to the session server.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state      ClientState
	lastError  error
	peerID     messages.PeerID
	serverName string
	tickRate   int
	conn       *websocket.Conn
	cancel     context.CancelFunc

	registry *protocol.Registry
	inbound  chan []byte // I/O goroutine -> game thread
	outbound chan []byte // game thread -> writer goroutine

	log *zap.Logger
}

func NewClient(registry *protocol.Registry, log *zap.Logger) *Client {
	return &Client{
		state:    StateDisconnected,
		registry: registry,
		inbound:  make(chan []byte, inboundQueueSize),
		outbound: make(chan []byte, outboundQueueSize),
		log:      log.Named("client"),
	}
}

// Connect dials the server in a background goroutine and initiates the handshake.
func (c *Client) Connect(endpoint string, hello *messages.Handshake) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.cancel = cancel
	c.mu.Unlock()

	router.OnConnect(func(nc *router.NetworkClient) {
		if !c.owns(nc) {
			return
		}
		c.log.Info("connected to server", zap.String("endpoint", endpoint))
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		frame, err := protocol.Encode(hello)
		if err != nil {
			c.setError(fmt.Errorf("failed to encode handshake: %w", err))
			return
		}
		if err := c.write(ctx, frame); err != nil {
			c.setError(fmt.Errorf("failed to send handshake: %w", err))
		}
	})

	router.On(func(nc *router.NetworkClient, f Frame) {
		if !c.owns(nc) {
			return
		}
		c.handleFrame(ctx, f.Data)
	})

	router.OnDisconnect(func(nc *router.NetworkClient, err error) {
		if !c.owns(nc) {
			return
		}
		c.log.Info("disconnected", zap.Error(err))
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(nc *router.NetworkClient, err error) {
		if !c.owns(nc) {
			return
		}
		c.log.Warn("router error", zap.Error(err))
	})

	go c.writeLoop(ctx)

	go func() {
		transport := transports.NewWsClientTransport("ws://" + endpoint)
		err := transport.Start(func(conn *websocket.Conn) {
			c.adopt(ctx, conn)
		})
		if err != nil && ctx.Err() == nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

// adopt stores a freshly dialed conn. The dial cannot be cancelled, so a
// conn that arrives after Disconnect is closed instead.
func (c *Client) adopt(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		_ = conn.CloseNow()
		c.log.Debug("closed connection dialed after disconnect")
		return false
	}
	c.conn = conn
	return true
}

// owns reports whether a router callback belongs to this client's conn.
// The router is process-wide, so a stale dial must not reach our handlers.
func (c *Client) owns(nc *router.NetworkClient) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return nc != nil && c.conn != nil && nc.Conn == c.conn
}

// handleFrame runs on the I/O goroutine. Framework messages are handled
// here; human messages are queued for the game thread.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	id, err := protocol.PeekID(data)
	if err != nil {
		c.log.Warn("empty frame")
		return
	}
	if !messages.IsFramework(id) {
		select {
		case c.inbound <- data:
		default:
			c.log.Warn("inbound queue full, dropping frame", zap.Stringer("id", id))
		}
		return
	}

	msg, err := c.registry.Decode(data)
	if err != nil {
		c.log.Warn("bad framework message", zap.Error(err))
		return
	}
	switch m := msg.(type) {
	case *messages.HandshakeAccepted:
		c.log.Info("join accepted",
			zap.Uint32("peer", uint32(m.Peer)), zap.String("server", m.ServerName), zap.Uint16("tickRate", m.TickRate))
		c.mu.Lock()
		c.peerID = m.Peer
		c.serverName = m.ServerName
		c.tickRate = int(m.TickRate)
		c.state = StateJoinedGame
		c.mu.Unlock()
	case *messages.HandshakeRejected:
		c.log.Info("join rejected", zap.String("reason", m.Reason))
		c.setError(fmt.Errorf("join rejected: %s", m.Reason))
	case *messages.Ping:
		frame, err := protocol.Encode(&messages.Pong{Nonce: m.Nonce})
		if err == nil {
			err = c.write(ctx, frame)
		}
		if err != nil {
			c.log.Warn("pong failed", zap.Error(err))
		}
	case *messages.Disconnect:
		c.setError(fmt.Errorf("server closed session: %s", m.Reason))
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.outbound:
			if err := c.write(ctx, frame); err != nil {
				c.setError(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(Frame{Data: frame})
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	return conn.Write(ctx, websocket.MessageBinary, payload)
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	if c.cancel != nil {
		// Under mu so adopt sees the cancellation.
		c.cancel()
	}
	c.state = StateDisconnected
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) PeerID() messages.PeerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerID
}

func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

// Receive returns all pending human frames. Non-blocking.
func (c *Client) Receive() [][]byte {
	return drainChan(c.inbound)
}

// Send queues a frame for the writer goroutine.
func (c *Client) Send(frame []byte) error {
	if c.State() != StateJoinedGame {
		return ErrNotConnected
	}
	select {
	case c.outbound <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

var _ Transport = (*Client)(nil)

// IsDown reports whether a transport has dropped out of a session.
func IsDown(t Transport) bool {
	s := t.State()
	return s == StateDisconnected || s == StateError
}

// DownError describes why a transport is down.
func DownError(t Transport) error {
	if err := t.LastError(); err != nil {
		return err
	}
	return errors.New("connection closed")
}
