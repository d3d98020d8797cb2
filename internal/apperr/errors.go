package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule failure so callers can map it without
// inspecting the message.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindBadRequest
	KindInsufficientStock
	KindConflict
	KindCorruptState
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindBadRequest:
		return "BadRequest"
	case KindInsufficientStock:
		return "InsufficientStock"
	case KindConflict:
		return "Conflict"
	case KindCorruptState:
		return "CorruptState"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned for business-rule failures.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrBadRequest        = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrCorruptState      = &Error{Kind: KindCorruptState, Message: "corrupt state"}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidArgument(format string, args ...any) *Error {
	return newf(KindInvalidArgument, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return newf(KindBadRequest, format, args...)
}

func InsufficientStock(format string, args ...any) *Error {
	return newf(KindInsufficientStock, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func CorruptState(format string, args ...any) *Error {
	return newf(KindCorruptState, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
