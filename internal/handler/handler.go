// Package handler provides request handling for the inventory backend.
//
// Every request, whether it arrives as a wire envelope or over HTTP, is
// reduced to an operation name plus wire.Args and dispatched through one
// operation table. Results are rendered as plain maps (see render.go).
package handler

import (
	"context"
	"fmt"
	"sort"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

// =============================================================================
// Request Context
// =============================================================================

// RequestContext holds context for handling a request.
// Session is nil for HTTP requests.
type RequestContext struct {
	Ctx       context.Context
	Session   *Session
	RequestID uint64
	Manager   *manager.Manager
	Args      wire.Args
}

// =============================================================================
// Handler
// =============================================================================

// OpFunc executes one operation.
type OpFunc func(rc *RequestContext) (any, error)

// Operation describes an entry in the operation table.
type Operation struct {
	Name    string
	Summary string
	Args    []string
	Fn      OpFunc
}

// Handler is the main request handler.
// It holds references to the manager and session manager.
type Handler struct {
	mgr            *manager.Manager
	sessionManager *SessionManager
	ops            map[string]Operation
}

// NewHandler creates a new handler. sm may be nil when no wire server runs.
func NewHandler(mgr *manager.Manager, sm *SessionManager) *Handler {
	h := &Handler{
		mgr:            mgr,
		sessionManager: sm,
		ops:            make(map[string]Operation),
	}
	for _, op := range operations() {
		h.ops[op.Name] = op
	}
	return h
}

// Manager returns the entity manager.
func (h *Handler) Manager() *manager.Manager {
	return h.mgr
}

// SessionManager returns the session manager.
func (h *Handler) SessionManager() *SessionManager {
	return h.sessionManager
}

// NewContext creates a request context.
func (h *Handler) NewContext(ctx context.Context, session *Session, requestID uint64, args wire.Args) *RequestContext {
	if args == nil {
		args = wire.Args{}
	}
	return &RequestContext{
		Ctx:       ctx,
		Session:   session,
		RequestID: requestID,
		Manager:   h.mgr,
		Args:      args,
	}
}

// Call runs op with args. Unknown operations fail with ErrUnknownOperation.
func (h *Handler) Call(ctx context.Context, session *Session, requestID uint64, op string, args wire.Args) (any, error) {
	entry, ok := h.ops[op]
	if !ok {
		return nil, fmt.Errorf("%q: %w", op, errors.ErrUnknownOperation)
	}
	ctx = logging.ContextWithOperation(ctx, op)
	return entry.Fn(h.NewContext(ctx, session, requestID, args))
}

// Handle answers one request envelope. Authentication is enforced by the
// caller (see SessionManager.Authenticate).
func (h *Handler) Handle(ctx context.Context, session *Session, req *wire.Envelope) *wire.Envelope {
	ctx = logging.ContextWithRequestID(ctx, req.ID)
	result, err := h.Call(ctx, session, req.ID, req.Op, req.Args)
	if err != nil {
		herr := ToHandlerError(err)
		logging.WithContext(ctx).Debug("request failed",
			"code", errors.CodeName(herr.Code),
			"error", herr.Message)
		return wire.NewError(req.ID, herr.Code, herr.Message)
	}
	return wire.NewResult(req.ID, result)
}

// Operations lists the operation table sorted by name, for help output and
// shell completion.
func Operations() []Operation {
	ops := operations()
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// =============================================================================
// Error Handling - uses centralized error codes from errors package
// =============================================================================

// HandlerError represents a handler error with a wire protocol code.
type HandlerError struct {
	Code    int32 // Wire protocol code from errors.Code*
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// WithCause adds a cause to the error.
func (e *HandlerError) WithCause(err error) *HandlerError {
	e.Cause = err
	return e
}

// NewError creates a handler error from a wire code.
func NewError(code int32, msg string) *HandlerError {
	return &HandlerError{Code: code, Message: msg, Cause: errors.CodeToError(code)}
}

// NewErrorFromErr creates a handler error from a sentinel error.
// It automatically maps the error to the correct wire code.
func NewErrorFromErr(err error, msg string) *HandlerError {
	code := errors.ErrorToCode(err)
	fullMsg := msg
	if err != nil && msg != "" {
		fullMsg = fmt.Sprintf("%s: %v", msg, err)
	} else if err != nil {
		fullMsg = err.Error()
	}
	return &HandlerError{Code: code, Message: fullMsg, Cause: err}
}

// Errorf creates a formatted handler error.
func Errorf(code int32, format string, args ...interface{}) *HandlerError {
	return NewError(code, fmt.Sprintf(format, args...))
}

var (
	// ErrNotAuthenticated is returned when a request carries no valid token.
	ErrNotAuthenticated = &HandlerError{
		Code:    errors.CodeNotAuthenticated,
		Message: "authentication required",
		Cause:   errors.ErrNotAuthenticated,
	}

	// ErrAuthFailed is returned for a token that matches no configured token.
	ErrAuthFailed = &HandlerError{
		Code:    errors.CodeAuthFailed,
		Message: "invalid token",
		Cause:   errors.ErrInvalidToken,
	}
)

// GetErrorCode extracts the wire code from an error.
func GetErrorCode(err error) int32 {
	var herr *HandlerError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return errors.ErrorToCode(err)
}

// ToHandlerError converts any error to a HandlerError.
// If the error is already a HandlerError, it is returned as-is.
func ToHandlerError(err error) *HandlerError {
	if err == nil {
		return nil
	}
	if herr, ok := err.(*HandlerError); ok {
		return herr
	}
	return NewErrorFromErr(err, "")
}
