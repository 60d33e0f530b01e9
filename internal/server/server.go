// Package server provides the wire protocol server of the inventory backend.
//
// The server accepts TCP (optionally TLS) connections, authenticates the
// first request of every connection by token and dispatches requests to the
// handler. Requests of one connection may be pipelined; responses carry the
// request id and can arrive out of order.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

var log = logging.Component("server")

// =============================================================================
// Rate Limiter for Failed Authentication Attempts
// =============================================================================

// RateLimiter counts FAILED authentication attempts per client address
// within a time window. A successful authentication resets the counter.
//
// Flow:
//  1. Client connects
//  2. IsBlocked() - if true, reject immediately
//  3. Requests are authenticated
//  4. On failure: RecordFailure()
//  5. On success: Reset()
type RateLimiter struct {
	mu       sync.RWMutex
	failures map[string]*rateLimitEntry
	limit    int
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a rate limiter that blocks an address after limit
// failures within window. Call Stop to end its cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		failures: make(map[string]*rateLimitEntry),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// IsBlocked returns true if the address has exceeded the failure limit.
func (rl *RateLimiter) IsBlocked(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok || rl.now().After(entry.resetTime) {
		return false
	}
	return entry.count >= rl.limit
}

// RecordFailure records a failed authentication attempt.
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.failures[ip]
	if !ok || now.After(entry.resetTime) {
		rl.failures[ip] = &rateLimitEntry{count: 1, resetTime: now.Add(rl.window)}
		return
	}
	entry.count++
}

// Reset clears the failure count for an address.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, ip)
}

// GetFailureCount returns the current failure count for an address.
func (rl *RateLimiter) GetFailureCount(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok || rl.now().After(entry.resetTime) {
		return 0
	}
	return entry.count
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, entry := range rl.failures {
		if now.After(entry.resetTime) {
			delete(rl.failures, ip)
		}
	}
}

// =============================================================================
// Server Configuration
// =============================================================================

// Config holds server configuration.
type Config struct {
	// Handler dispatches requests (required).
	Handler *handler.Handler

	// Sessions tracks connections and tokens (required).
	Sessions *handler.SessionManager

	// Listen is the address to listen on (e.g., "0.0.0.0:9170").
	Listen string

	// TLS configuration (optional).
	TLSCertFile string
	TLSKeyFile  string

	// MaxMessageSize limits a single request envelope.
	MaxMessageSize int

	// MaxInflight bounds concurrently executing requests per connection.
	MaxInflight int

	// Failed authentication limiting.
	AuthFailureLimit  int
	AuthFailureWindow time.Duration
}

// =============================================================================
// Server
// =============================================================================

// Server is the wire protocol server.
type Server struct {
	cfg      *Config
	h        *handler.Handler
	sessions *handler.SessionManager

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}

	authRateLimiter *RateLimiter

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New creates a new server.
func New(cfg *Config) *Server {
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = config.DefaultMaxMessageSize
	}
	if cfg.MaxInflight == 0 {
		cfg.MaxInflight = 8
	}
	if cfg.AuthFailureLimit == 0 {
		cfg.AuthFailureLimit = config.DefaultAuthFailureLimit
	}
	if cfg.AuthFailureWindow == 0 {
		cfg.AuthFailureWindow = config.DefaultAuthFailureWindow
	}
	if cfg.Sessions == nil {
		cfg.Sessions = cfg.Handler.SessionManager()
	}

	return &Server{
		cfg:             cfg,
		h:               cfg.Handler,
		sessions:        cfg.Sessions,
		ready:           make(chan struct{}),
		shutdown:        make(chan struct{}),
		authRateLimiter: NewRateLimiter(cfg.AuthFailureLimit, cfg.AuthFailureWindow),
	}
}

// listen opens the configured listener.
func (s *Server) listen() (net.Listener, error) {
	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS cert: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln, err := tls.Listen("tcp", s.cfg.Listen, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("TLS listen: %w", err)
		}
		log.Info("listening with TLS", "address", ln.Addr().String())
		return ln, nil
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	log.Info("listening without TLS", "address", ln.Addr().String())
	return ln, nil
}

// Run listens on the configured address and serves until ctx is cancelled
// or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.sessions.Start()

	stop := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error("accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

// Shutdown stops accepting, closes all sessions and waits for their
// handlers to finish.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.Info("shutting down")
		close(s.shutdown)

		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()

		s.sessions.Stop()
		s.wg.Wait()
		s.authRateLimiter.Stop()

		log.Info("shutdown complete")
	})
}

// =============================================================================
// Connection Handling
// =============================================================================

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	remoteIP := extractIP(remote)

	if s.authRateLimiter.IsBlocked(remoteIP) {
		log.Warn("blocked due to too many failed auth attempts", "remote", remote)
		conn.Close()
		return
	}

	w := &wire.Conn{
		Reader: wire.NewReaderSize(conn, s.cfg.MaxMessageSize),
		Writer: wire.NewWriter(conn),
	}
	session := s.sessions.CreateSession(conn, w)
	log.Info("connection opened", "session_id", session.ID, "remote", remote)

	ctx, cancel := context.WithCancel(logging.ContextWithRemote(ctx, remote))
	defer cancel()

	if s.sessions.AuthRequired() {
		conn.SetReadDeadline(time.Now().Add(s.sessions.AuthTimeout()))
	}

	g := &errgroup.Group{}
	g.SetLimit(s.cfg.MaxInflight)

	for {
		req, err := w.Read()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				log.Debug("read failed", "session_id", session.ID, "error", err)
			}
			break
		}

		if !req.IsRequest() {
			session.Send(wire.NewErrorf(req.ID, errors.CodeInvalidRequest, "envelope has no op"))
			continue
		}

		wasAuthenticated := session.IsAuthenticated()
		if err := s.sessions.Authenticate(session, req.Token); err != nil {
			if errors.Is(err, errors.ErrInvalidToken) {
				s.authRateLimiter.RecordFailure(remoteIP)
				log.Warn("auth failed", "remote", remote,
					"failure_count", s.authRateLimiter.GetFailureCount(remoteIP))
			}
			herr := handler.ToHandlerError(err)
			session.Send(wire.NewError(req.ID, herr.Code, herr.Message))
			if !session.IsAuthenticated() {
				break
			}
			continue
		}
		if !wasAuthenticated && session.IsAuthenticated() {
			s.authRateLimiter.Reset(remoteIP)
			conn.SetReadDeadline(time.Time{})
		}

		g.Go(func() error {
			resp := s.h.Handle(ctx, session, req)
			if err := session.Send(resp); err != nil {
				log.Debug("write failed", "session_id", session.ID, "error", err)
			}
			return nil
		})
	}

	cancel()
	g.Wait()
	session.Close()
	log.Info("connection closed", "session_id", session.ID, "remote", remote)
}

// extractIP extracts the IP address from a remote address string.
func extractIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
