package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ip := "10.0.0.1"
	assert.False(t, rl.IsBlocked(ip))
	for i := 0; i < 3; i++ {
		rl.RecordFailure(ip)
	}
	assert.True(t, rl.IsBlocked(ip))
	assert.Equal(t, 3, rl.GetFailureCount(ip))
	assert.False(t, rl.IsBlocked("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.False(t, rl.IsBlocked(ip))
	assert.Zero(t, rl.GetFailureCount(ip))
	rl.cleanup()

	rl.RecordFailure(ip)
	rl.Reset(ip)
	assert.Zero(t, rl.GetFailureCount(ip))
}

func TestExtractIP(t *testing.T) {
	assert.Equal(t, "127.0.0.1", extractIP("127.0.0.1:4242"))
	assert.Equal(t, "::1", extractIP("[::1]:4242"))
	assert.Equal(t, "pipe", extractIP("pipe"))
}

// startServer runs a server on a loopback port.
func startServer(t *testing.T, tokens ...handler.TokenConfig) *Server {
	t.Helper()
	sm := handler.NewSessionManager(&handler.SessionManagerConfig{
		Tokens:      tokens,
		AuthTimeout: 2 * time.Second,
	})
	h := handler.NewHandler(manager.New(store.NewMemStore(), manager.DefaultConfig()), sm)
	srv := New(&Config{Handler: h, Listen: "127.0.0.1:0", AuthFailureLimit: 2})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

func dial(t *testing.T, srv *Server) *wire.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return wire.NewConn(conn)
}

func roundTrip(t *testing.T, c *wire.Conn, req *wire.Envelope) *wire.Envelope {
	t.Helper()
	require.NoError(t, c.Write(req))
	resp, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.ID)
	return resp
}

func TestServer_Requests(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	resp := roundTrip(t, c, wire.NewRequest(1, "ping", "", nil))
	require.Nil(t, resp.Error)
	assert.Equal(t, "pong", resp.Result)

	resp = roundTrip(t, c, wire.NewRequest(2, "storage.create", "", wire.Args{"name": "Hall A"}))
	require.Nil(t, resp.Error)
	hall := resp.Result.(map[string]any)
	assert.Equal(t, "Hall A", hall["name"])

	resp = roundTrip(t, c, wire.NewRequest(3, "storage.get", "", wire.Args{"id": hall["id"]}))
	require.Nil(t, resp.Error)

	resp = roundTrip(t, c, wire.NewRequest(4, "storage.frobnicate", "", nil))
	require.NotNil(t, resp.Error)
	assert.ErrorIs(t, resp.Error.Err(), errors.ErrUnknownOperation)

	resp = roundTrip(t, c, wire.NewResult(5, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.CodeInvalidRequest, resp.Error.Code)
}

func TestServer_Pipelined(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	const n = 20
	for i := 1; i <= n; i++ {
		require.NoError(t, c.Write(wire.NewRequest(uint64(i), "storage.create", "", wire.Args{"name": "S"})))
	}
	seen := make(map[uint64]bool)
	for i := 0; i < n; i++ {
		resp, err := c.Read()
		require.NoError(t, err)
		require.Nil(t, resp.Error, "request %d", resp.ID)
		seen[resp.ID] = true
	}
	assert.Len(t, seen, n)
}

func TestServer_Auth(t *testing.T) {
	srv := startServer(t, handler.TokenConfig{ID: "admin", Token: "s3cret"})

	t.Run("missing token closes", func(t *testing.T) {
		c := dial(t, srv)
		resp := roundTrip(t, c, wire.NewRequest(1, "ping", "", nil))
		require.NotNil(t, resp.Error)
		assert.Equal(t, errors.CodeNotAuthenticated, resp.Error.Code)
		_, err := c.Read()
		assert.Error(t, err)
	})

	t.Run("token once per connection", func(t *testing.T) {
		c := dial(t, srv)
		resp := roundTrip(t, c, wire.NewRequest(1, "ping", "s3cret", nil))
		require.Nil(t, resp.Error)
		resp = roundTrip(t, c, wire.NewRequest(2, "storage.list", "", nil))
		require.Nil(t, resp.Error)
		assert.Equal(t, []any{}, resp.Result)
	})

	t.Run("failures block the address", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			c := dial(t, srv)
			resp := roundTrip(t, c, wire.NewRequest(1, "ping", "wrong", nil))
			require.NotNil(t, resp.Error)
			assert.Equal(t, errors.CodeAuthFailed, resp.Error.Code)
		}

		c := dial(t, srv)
		// blocked connections are closed without a response
		_ = c.Write(wire.NewRequest(1, "ping", "s3cret", nil))
		_, err := c.Read()
		assert.Error(t, err)
	})
}
