package rpc

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/eventloop"
	"github.com/nerrad567/gray-logic-runtime/internal/manager"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Domain errors for the rpc package.
var (
	// ErrUnknownMethod is returned for a procedure name that is not registered.
	ErrUnknownMethod = errors.New("rpc: unknown method")

	// ErrInvalidParams is returned when request parameters cannot be decoded.
	ErrInvalidParams = errors.New("rpc: invalid params")

	// ErrInvalidRequest is returned when a request envelope cannot be decoded.
	ErrInvalidRequest = errors.New("rpc: invalid request")
)

// Error codes carried in responses. They match the HTTP API vocabulary.
const (
	CodeBadRequest     = "bad_request"
	CodeMethodNotFound = "method_not_found"
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeTimeout        = "timeout"
	CodeInternal       = "internal_error"
)

// Error is the wire form of a failed call.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError converts err into its wire form.
func NewError(err error) *Error {
	return &Error{Code: ErrorCode(err), Message: err.Error()}
}

// ErrorCode maps a domain error to a stable response code.
func ErrorCode(err error) string {
	var wire *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &wire):
		return wire.Code
	case errors.Is(err, ErrUnknownMethod):
		return CodeMethodNotFound
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrInvalidRequest):
		return CodeBadRequest
	case errors.Is(err, component.ErrDuplicateID),
		errors.Is(err, binding.ErrDuplicate),
		errors.Is(err, plugin.ErrDuplicatePlugin):
		return CodeConflict
	case errors.Is(err, component.ErrNotFound),
		errors.Is(err, binding.ErrNotFound),
		errors.Is(err, plugin.ErrPluginNotFound):
		return CodeNotFound
	case errors.Is(err, component.ErrInvalidConfig),
		errors.Is(err, component.ErrUnknownMember),
		errors.Is(err, component.ErrTypeMismatch),
		errors.Is(err, component.ErrPluginFailed),
		errors.Is(err, binding.ErrInvalidConfig),
		errors.Is(err, plugin.ErrInvalidPluginID):
		return CodeValidation
	case errors.Is(err, manager.ErrBindingsDisabled),
		errors.Is(err, manager.ErrNotInitialised),
		errors.Is(err, component.ErrDestroyed),
		errors.Is(err, eventloop.ErrStopped):
		return CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
