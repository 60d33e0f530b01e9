package handler

// Sessions live exactly as long as their connection. There is no session
// resumption: a client that reconnects authenticates again.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

var log = logging.Component("session")

// =============================================================================
// Session
// =============================================================================

// Session represents one wire connection.
//
// Session is safe for concurrent use.
type Session struct {
	// Immutable fields (no lock needed)
	ID        string
	Remote    string
	CreatedAt time.Time

	// Connection - protected by connMu
	connMu sync.RWMutex
	Conn   net.Conn
	Wire   *wire.Conn

	// Authentication state - protected by mu
	mu      sync.RWMutex
	tokenID string

	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func(sessionID string)
}

// NewSession creates a session for conn.
func NewSession(id string, conn net.Conn, w *wire.Conn) *Session {
	remote := ""
	if conn != nil && conn.RemoteAddr() != nil {
		remote = conn.RemoteAddr().String()
	}
	return &Session{
		ID:        id,
		Remote:    remote,
		CreatedAt: time.Now(),
		Conn:      conn,
		Wire:      w,
	}
}

// SetOnClose sets the close callback.
func (s *Session) SetOnClose(fn func(sessionID string)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// TokenID returns the id of the token the session authenticated with.
func (s *Session) TokenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenID
}

// IsAuthenticated reports whether a valid token has been presented.
func (s *Session) IsAuthenticated() bool {
	return s.TokenID() != ""
}

func (s *Session) bind(tokenID string) {
	s.mu.Lock()
	s.tokenID = tokenID
	s.mu.Unlock()
}

// Send writes a response envelope to the client.
func (s *Session) Send(env *wire.Envelope) error {
	s.connMu.RLock()
	w := s.Wire
	s.connMu.RUnlock()
	if w == nil || s.closed.Load() {
		return net.ErrClosed
	}
	return w.Write(env)
}

// Close closes the session permanently.
// This is idempotent - calling it multiple times has no additional effect.
func (s *Session) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.mu.RLock()
		onClose := s.onClose
		s.mu.RUnlock()

		s.connMu.Lock()
		if s.Conn != nil {
			closeErr = s.Conn.Close()
			s.Conn = nil
			s.Wire = nil
		}
		s.connMu.Unlock()

		if onClose != nil {
			onClose(s.ID)
		}

		log.Debug("session closed", "session_id", s.ID)
	})

	return closeErr
}

// IsClosed returns true if the session is closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// =============================================================================
// Session Manager
// =============================================================================

// TokenConfig holds token configuration.
type TokenConfig struct {
	ID    string
	Token string
}

// SessionManagerConfig holds session manager configuration.
type SessionManagerConfig struct {
	AuthTimeout     time.Duration
	CleanupInterval time.Duration
	Tokens          []TokenConfig
}

// SessionManager manages client sessions and the configured tokens.
// With no tokens configured authentication is disabled.
//
// SessionManager is safe for concurrent use.
type SessionManager struct {
	mu sync.RWMutex

	sessions map[string]*Session     // sessionID -> session
	tokens   map[string]*TokenConfig // tokenID -> config

	authTimeout     time.Duration
	cleanupInterval time.Duration

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupWg     sync.WaitGroup
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg *SessionManagerConfig) *SessionManager {
	if cfg == nil {
		cfg = &SessionManagerConfig{}
	}
	if cfg.AuthTimeout == 0 {
		cfg.AuthTimeout = time.Duration(config.DefaultAuthTimeoutSec) * time.Second
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		tokens:          make(map[string]*TokenConfig),
		authTimeout:     cfg.AuthTimeout,
		cleanupInterval: cfg.CleanupInterval,
		cleanupCtx:      ctx,
		cleanupCancel:   cancel,
	}
	for _, t := range cfg.Tokens {
		tc := t
		sm.tokens[tc.ID] = &tc
	}
	return sm
}

// Start starts the background cleanup goroutine.
func (sm *SessionManager) Start() {
	sm.cleanupWg.Add(1)
	go sm.cleanupLoop()
	log.Info("session manager started", "tokens", len(sm.tokens))
}

// Stop stops the session manager and closes all sessions.
func (sm *SessionManager) Stop() {
	sm.cleanupCancel()
	sm.cleanupWg.Wait()

	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	log.Info("session manager stopped")
}

// AuthTimeout returns the time a new connection has to authenticate.
func (sm *SessionManager) AuthTimeout() time.Duration {
	return sm.authTimeout
}

func (sm *SessionManager) cleanupLoop() {
	defer sm.cleanupWg.Done()

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanupClosedSessions()
		case <-sm.cleanupCtx.Done():
			return
		}
	}
}

func (sm *SessionManager) cleanupClosedSessions() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	n := 0
	for id, session := range sm.sessions {
		if session.IsClosed() {
			delete(sm.sessions, id)
			n++
		}
	}
	if n > 0 {
		log.Debug("cleaned up closed sessions", "count", n)
	}
}

// =============================================================================
// Token Operations
// =============================================================================

// RegisterToken adds or updates a token configuration.
func (sm *SessionManager) RegisterToken(cfg *TokenConfig) {
	sm.mu.Lock()
	sm.tokens[cfg.ID] = cfg
	sm.mu.Unlock()
}

// AuthRequired reports whether any token is configured.
func (sm *SessionManager) AuthRequired() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.tokens) > 0
}

// ValidateToken validates a token and returns its config.
func (sm *SessionManager) ValidateToken(token string) (*TokenConfig, bool) {
	if token == "" {
		return nil, false
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var found *TokenConfig
	for _, cfg := range sm.tokens {
		if subtle.ConstantTimeCompare([]byte(cfg.Token), []byte(token)) == 1 {
			found = cfg
		}
	}
	return found, found != nil
}

// Authenticate checks the token of a request. A session that presented a
// valid token once may omit it afterwards; a token that is presented is
// always checked.
func (sm *SessionManager) Authenticate(session *Session, token string) error {
	if !sm.AuthRequired() {
		return nil
	}
	if token == "" {
		if session != nil && session.IsAuthenticated() {
			return nil
		}
		return ErrNotAuthenticated
	}

	cfg, ok := sm.ValidateToken(token)
	if !ok {
		return ErrAuthFailed
	}
	if session != nil && session.TokenID() != cfg.ID {
		session.bind(cfg.ID)
		log.Info("session authenticated", "session_id", session.ID, "token_id", cfg.ID)
	}
	return nil
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateSession registers a session for a new connection.
func (sm *SessionManager) CreateSession(conn net.Conn, w *wire.Conn) *Session {
	session := NewSession(generateSessionID(), conn, w)
	session.SetOnClose(func(sid string) {
		sm.mu.Lock()
		delete(sm.sessions, sid)
		sm.mu.Unlock()
	})

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	log.Debug("session created", "session_id", session.ID, "remote", session.Remote)
	return session
}

// GetSession returns a session by ID.
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// RemoveSession closes and forgets a session.
func (sm *SessionManager) RemoveSession(id string) {
	sm.mu.RLock()
	session, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return
	}
	session.Close()
}

// Count returns the total number of sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CountActive returns the number of open, authenticated sessions.
func (sm *SessionManager) CountActive() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	count := 0
	for _, s := range sm.sessions {
		if !s.IsClosed() && s.IsAuthenticated() {
			count++
		}
	}
	return count
}

// generateSessionID generates a cryptographically secure session ID.
// Uses 128 bits of randomness (16 bytes) encoded as hex (32 characters).
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate session ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}
