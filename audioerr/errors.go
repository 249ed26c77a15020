// Package audioerr classifies the ways an analysis request can fail.
//
// Every stage of the engine returns an *Error carrying a Kind so callers can
// map failures to their own status codes without string matching. None of the
// kinds are transient: the engine never retries.
package audioerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a failure class
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedFormat
	KindDecode
	KindInsufficientSignal
	KindDegenerateProfile
	KindCancelled
	KindTooLarge
	KindInvalidArgument
)

// Sentinels usable with errors.Is
var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrDecode             = errors.New("decode error")
	ErrInsufficientSignal = errors.New("insufficient signal")
	ErrDegenerateProfile  = errors.New("degenerate pitch class profile")
	ErrCancelled          = errors.New("cancelled")
	ErrTooLarge           = errors.New("input too large")
	ErrInvalidArgument    = errors.New("invalid argument")
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindDecode:
		return "decode_error"
	case KindInsufficientSignal:
		return "insufficient_signal"
	case KindDegenerateProfile:
		return "degenerate_profile"
	case KindCancelled:
		return "cancelled"
	case KindTooLarge:
		return "too_large"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupportedFormat:
		return ErrUnsupportedFormat
	case KindDecode:
		return ErrDecode
	case KindInsufficientSignal:
		return ErrInsufficientSignal
	case KindDegenerateProfile:
		return ErrDegenerateProfile
	case KindCancelled:
		return ErrCancelled
	case KindTooLarge:
		return ErrTooLarge
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return nil
	}
}

// Error is the error type returned by every engine stage
type Error struct {
	Kind Kind
	Op   string // stage that failed, e.g. "transcode.Load"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New creates an error of the given kind
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Cancelled converts a context error into a Cancelled error.
// It returns nil when ctx has not been cancelled.
func Cancelled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindCancelled, Op: op, Msg: "analysis cancelled", Err: err}
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain.
// Bare context errors classify as KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}
