// Package client provides a wire protocol client for the inventory server.
//
// A Client holds one connection. Calls may be issued concurrently; each is
// matched to its response by request id.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	lagerSync "github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/sync"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

// =============================================================================
// State Machine
// =============================================================================

// ClientState represents the connection state of a client.
type ClientState int32

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

// String returns the human-readable name of the state.
func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

type stateTransition struct {
	from ClientState
	to   ClientState
}

var validTransitions = map[stateTransition]bool{
	{StateDisconnected, StateConnecting}: true,
	{StateDisconnected, StateClosed}:     true,

	{StateConnecting, StateConnected}:    true,
	{StateConnecting, StateDisconnected}: true,

	{StateConnected, StateDisconnected}: true,
	{StateConnected, StateClosing}:      true,

	{StateClosing, StateClosed}: true,
}

// =============================================================================
// Errors
// =============================================================================

var (
	ErrClientClosed      = errors.New("client is closed")
	ErrClientClosing     = errors.New("client is closing")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrTimeout           = errors.New("request timeout")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// =============================================================================
// Client
// =============================================================================

// Config holds client configuration.
type Config struct {
	Addr           string
	Token          string
	TLS            bool
	TLSSkipVerify  bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "localhost:9170",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: config.DefaultQueryTimeout,
	}
}

// Client is a connection to an inventory server.
type Client struct {
	addr           string
	token          string
	tlsConfig      *tls.Config
	connectTimeout time.Duration
	requestTimeout time.Duration

	// Connection - protected by mu
	mu   sync.Mutex
	conn net.Conn
	wire *wire.Conn

	state     atomic.Int32
	closeOnce lagerSync.ResettableOnce

	pendingMu    sync.RWMutex
	pending      map[uint64]chan *wire.Envelope
	requestID    atomic.Uint64
	onDisconnect func(error)

	shutdown chan struct{}
}

// New creates a new client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	c := &Client{
		addr:           cfg.Addr,
		token:          cfg.Token,
		connectTimeout: cfg.ConnectTimeout,
		requestTimeout: cfg.RequestTimeout,
		pending:        make(map[uint64]chan *wire.Envelope),
		shutdown:       make(chan struct{}),
	}
	if cfg.TLS {
		c.tlsConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}
	}
	return c
}

func (c *Client) getState() ClientState {
	return ClientState(c.state.Load())
}

func (c *Client) transitionTo(newState ClientState) error {
	for {
		oldState := c.getState()
		if !validTransitions[stateTransition{from: oldState, to: newState}] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
		}
		if c.state.CompareAndSwap(int32(oldState), int32(newState)) {
			return nil
		}
	}
}

func (c *Client) transitionFrom(from, to ClientState) bool {
	if !validTransitions[stateTransition{from: from, to: to}] {
		return false
	}
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// =============================================================================
// Connection Management
// =============================================================================

// Connect connects and authenticates to the server.
func (c *Client) Connect(ctx context.Context) error {
	switch c.getState() {
	case StateClosed:
		return ErrClientClosed
	case StateClosing:
		return ErrClientClosing
	case StateConnected:
		return ErrAlreadyConnected
	}

	if !c.transitionFrom(StateDisconnected, StateConnecting) {
		return fmt.Errorf("cannot connect: current state is %s", c.getState())
	}
	success := false
	defer func() {
		if !success {
			c.transitionFrom(StateConnecting, StateDisconnected)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var conn net.Conn
	var err error
	dialer := &net.Dialer{}
	if c.tlsConfig != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", c.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.conn = conn
	c.wire = wire.NewConn(conn)

	if err := c.authenticate(ctx); err != nil {
		conn.Close()
		c.conn = nil
		c.wire = nil
		return err
	}

	if err := c.transitionTo(StateConnected); err != nil {
		conn.Close()
		c.conn = nil
		c.wire = nil
		return err
	}
	go c.readLoop(c.wire)

	success = true
	return nil
}

// authenticate presents the token with a ping; the server binds it to the
// connection.
func (c *Client) authenticate(ctx context.Context) error {
	id := c.requestID.Add(1)
	if err := c.wire.Write(wire.NewRequest(id, "ping", c.token, nil)); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	env, err := c.wire.Read()
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %w", env.Error.Message, ErrAuthFailed)
	}
	return nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		switch c.getState() {
		case StateClosed, StateClosing:
			return
		case StateDisconnected:
			c.transitionFrom(StateDisconnected, StateClosed)
			return
		case StateConnected:
			c.transitionFrom(StateConnected, StateClosing)
		}

		close(c.shutdown)

		c.mu.Lock()
		if c.conn != nil {
			closeErr = c.conn.Close()
			c.conn = nil
			c.wire = nil
		}
		c.mu.Unlock()

		c.failPending()
		c.transitionFrom(StateClosing, StateClosed)
	})

	return closeErr
}

// Reconnect drops the current connection and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.getState() == StateClosed {
		return ErrClientClosed
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.wire = nil
	}
	c.mu.Unlock()

	c.state.Store(int32(StateDisconnected))
	c.failPending()
	c.shutdown = make(chan struct{})
	c.closeOnce.Reset()

	return c.Connect(ctx)
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// IsConnected returns true if connected.
func (c *Client) IsConnected() bool {
	return c.getState() == StateConnected
}

// IsClosed returns true if permanently closed.
func (c *Client) IsClosed() bool {
	return c.getState() == StateClosed
}

// State returns the current state as a string.
func (c *Client) State() string {
	return c.getState().String()
}

// OnDisconnect sets the handler for an unexpected disconnect.
func (c *Client) OnDisconnect(fn func(error)) {
	c.pendingMu.Lock()
	c.onDisconnect = fn
	c.pendingMu.Unlock()
}

// =============================================================================
// Read Loop
// =============================================================================

func (c *Client) readLoop(w *wire.Conn) {
	var disconnectErr error

	defer func() {
		c.pendingMu.RLock()
		fn := c.onDisconnect
		c.pendingMu.RUnlock()

		if fn != nil && disconnectErr != nil {
			fn(disconnectErr)
		}
	}()

	for {
		env, err := w.Read()
		if err != nil {
			c.mu.Lock()
			stale := c.wire != w
			c.mu.Unlock()
			if stale || c.getState() != StateConnected {
				return
			}
			disconnectErr = err
			c.transitionFrom(StateConnected, StateDisconnected)
			c.failPending()
			return
		}

		// send under the lock so failPending cannot close ch concurrently
		c.pendingMu.RLock()
		if ch, ok := c.pending[env.ID]; ok {
			select {
			case ch <- env:
			default:
			}
		}
		c.pendingMu.RUnlock()
	}
}

// =============================================================================
// Request/Response
// =============================================================================

// Call runs op on the server and returns its result. Server errors match
// the sentinels of the errors package (errors.Is(err, errors.ErrNotFound)).
func (c *Client) Call(ctx context.Context, op string, args wire.Args) (any, error) {
	if c.getState() != StateConnected {
		return nil, ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	id := c.requestID.Add(1)
	ch := make(chan *wire.Envelope, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.mu.Lock()
	w, shutdown := c.wire, c.shutdown
	c.mu.Unlock()
	if w == nil {
		return nil, ErrNotConnected
	}
	if err := w.Write(wire.NewRequest(id, op, "", args)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != nil {
			return nil, resp.Error.Err()
		}
		return resp.Result, nil

	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %v", op, ErrTimeout, ctx.Err())

	case <-shutdown:
		return nil, ErrClientClosed
	}
}
