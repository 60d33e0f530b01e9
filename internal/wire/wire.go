// Package wire provides protobuf message framing for the inventory protocol.
//
// Messages are length-delimited using protobuf's standard varint encoding.
// Each message is a google.protobuf.Struct carrying one Envelope:
//
//	request:  {"id": 7, "op": "storage.get", "token": "...", "args": {...}}
//	response: {"id": 7, "result": ...}
//	error:    {"id": 7, "error": {"code": 5, "message": "..."}}
package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

// =============================================================================
// Envelope
// =============================================================================

// Envelope is one request or response.
type Envelope struct {
	ID    uint64
	Op    string
	Token string
	Args  Args

	Result any
	Error  *Error
}

// Error is the error payload of a failed response.
type Error struct {
	Code    int32
	Message string
}

// Err converts the payload into a Go error that matches the sentinel of
// its code.
func (e *Error) Err() error {
	return fmt.Errorf("%s (%s): %w", e.Message, errors.CodeName(e.Code), errors.CodeToError(e.Code))
}

// IsRequest reports whether env carries an operation.
func (env *Envelope) IsRequest() bool {
	return env.Op != ""
}

// toStruct encodes env. Only non-empty fields are written.
func (env *Envelope) toStruct() (*structpb.Struct, error) {
	m := map[string]any{"id": float64(env.ID)}
	if env.Op != "" {
		m["op"] = env.Op
	}
	if env.Token != "" {
		m["token"] = env.Token
	}
	if env.Args != nil {
		m["args"] = map[string]any(env.Args)
	}
	if env.Error != nil {
		m["error"] = map[string]any{
			"code":    float64(env.Error.Code),
			"message": env.Error.Message,
		}
	} else if !env.IsRequest() {
		m["result"] = env.Result
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes an envelope.
func fromStruct(s *structpb.Struct) (*Envelope, error) {
	m := s.AsMap()
	env := &Envelope{}

	if id, ok := m["id"].(float64); ok && id >= 0 {
		env.ID = uint64(id)
	}
	if op, ok := m["op"].(string); ok {
		env.Op = op
	}
	if tok, ok := m["token"].(string); ok {
		env.Token = tok
	}
	if raw, ok := m["args"]; ok && raw != nil {
		args, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.NewValidation("args", "must be an object")
		}
		env.Args = args
	}
	if raw, ok := m["error"].(map[string]any); ok {
		e := &Error{}
		if code, ok := raw["code"].(float64); ok {
			e.Code = int32(code)
		}
		e.Message, _ = raw["message"].(string)
		env.Error = e
	}
	env.Result = m["result"]
	return env, nil
}

// =============================================================================
// Reader / Writer
// =============================================================================

// Reader reads length-delimited protobuf envelopes from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	maxSize int
	mu      sync.Mutex
}

// NewReader creates a Reader wrapping the given io.Reader.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, config.DefaultMaxMessageSize)
}

// NewReaderSize creates a Reader that rejects messages above maxSize bytes.
func NewReaderSize(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = config.DefaultMaxMessageSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// Read reads and decodes the next envelope.
// Returns an error if the message exceeds the size limit.
func (r *Reader) Read() (*Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := &structpb.Struct{}
	opts := protodelim.UnmarshalOptions{
		MaxSize: int64(r.maxSize),
	}
	if err := opts.UnmarshalFrom(r.r, msg); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return fromStruct(msg)
}

// Writer writes length-delimited protobuf envelopes to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes and writes an envelope with length prefix.
func (w *Writer) Write(env *Envelope) error {
	msg, err := env.toStruct()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := protodelim.MarshalTo(w.w, msg); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// Conn combines Reader and Writer for bidirectional communication.
type Conn struct {
	*Reader
	*Writer
}

// NewConn creates a Conn from an io.ReadWriter (e.g., net.Conn).
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		Reader: NewReader(rw),
		Writer: NewWriter(rw),
	}
}

// =============================================================================
// Envelope Helpers
// =============================================================================

// NewRequest creates a request envelope.
func NewRequest(id uint64, op, token string, args Args) *Envelope {
	return &Envelope{ID: id, Op: op, Token: token, Args: args}
}

// NewResult creates a success envelope. result must consist of nil, bool,
// numbers, strings, []any and map[string]any.
func NewResult(id uint64, result any) *Envelope {
	return &Envelope{ID: id, Result: result}
}

// NewError creates an error envelope with the given request ID, error code, and message.
// Error codes should be from the errors package (errors.Code*).
func NewError(id uint64, code int32, msg string) *Envelope {
	return &Envelope{ID: id, Error: &Error{Code: code, Message: msg}}
}

// NewErrorFromErr creates an error envelope from a Go error.
// It automatically maps the error to the appropriate wire code using errors.ErrorToCode.
func NewErrorFromErr(id uint64, err error) *Envelope {
	return NewError(id, errors.ErrorToCode(err), err.Error())
}

// NewErrorf creates an error envelope with a formatted message.
func NewErrorf(id uint64, code int32, format string, args ...interface{}) *Envelope {
	return NewError(id, code, fmt.Sprintf(format, args...))
}
