package wire

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r := NewReader(&buf)

	req := NewRequest(42, "storage.get", "secret", Args{
		"id":    "9b2f7c1e-4d6a-4f3b-8e21-5a7c9d0e1f23",
		"depth": 2,
	})
	require.NoError(t, w.Write(req))

	got, err := r.Read()
	require.NoError(t, err)
	assert.True(t, got.IsRequest())
	assert.Equal(t, uint64(42), got.ID)
	assert.Equal(t, "storage.get", got.Op)
	assert.Equal(t, "secret", got.Token)

	id, err := got.Args.String("id")
	require.NoError(t, err)
	assert.Equal(t, "9b2f7c1e-4d6a-4f3b-8e21-5a7c9d0e1f23", id)
	depth, err := got.Args.Int("depth", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestResultAndError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r := NewReader(&buf)

	require.NoError(t, w.Write(NewResult(1, map[string]any{
		"name":     "Hall A",
		"children": []any{},
	})))
	require.NoError(t, w.Write(NewErrorFromErr(2, errors.NewNotFound("storage", "x"))))

	res, err := r.Read()
	require.NoError(t, err)
	assert.False(t, res.IsRequest())
	assert.Nil(t, res.Error)
	m, ok := res.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Hall A", m["name"])

	e, err := r.Read()
	require.NoError(t, err)
	require.NotNil(t, e.Error)
	assert.Equal(t, uint64(2), e.ID)
	assert.Equal(t, errors.CodeNotFound, e.Error.Code)
	assert.ErrorIs(t, e.Error.Err(), errors.ErrNotFound)
}

func TestReaderMaxSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write(NewResult(1, string(make([]byte, 1024)))))

	_, err := NewReaderSize(&buf, 128).Read()
	assert.Error(t, err)
}

func TestConnOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca, cb := NewConn(a), NewConn(b)
	done := make(chan error, 1)
	go func() {
		env, err := cb.Read()
		if err != nil {
			done <- err
			return
		}
		done <- cb.Write(NewResult(env.ID, env.Op))
	}()

	require.NoError(t, ca.Write(NewRequest(9, "ping", "", nil)))
	resp, err := ca.Read()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, uint64(9), resp.ID)
	assert.Equal(t, "ping", resp.Result)
}

func TestArgs(t *testing.T) {
	a := Args{"name": "x", "size": 1.5, "n": 2.0, "frac": 2.5, "flag": true, "obj": map[string]any{}, "null": nil}

	_, err := a.String("missing")
	assert.ErrorIs(t, err, errors.ErrMissingField)
	_, err = a.String("size")
	assert.True(t, errors.IsValidation(err))

	s, err := a.OptString("missing")
	require.NoError(t, err)
	assert.Empty(t, s)

	p, err := a.StringPtr("null")
	require.NoError(t, err)
	assert.Nil(t, p)

	f, err := a.FloatPtr("size")
	require.NoError(t, err)
	assert.Equal(t, 1.5, *f)

	n, err := a.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = a.Int("frac", 0)
	assert.Error(t, err)

	b, err := a.Bool("flag")
	require.NoError(t, err)
	assert.True(t, b)

	o, err := a.Object("obj")
	require.NoError(t, err)
	assert.NotNil(t, o)
}
