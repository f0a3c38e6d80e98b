package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	// ErrNotFound means no source subtitle exists for the media. Not retryable.
	ErrNotFound ErrorKind = iota
	// ErrUpstream means the catalog or translation backend kept failing after retries.
	ErrUpstream
	// ErrParse means the source subtitle is malformed beyond recovery.
	ErrParse
	// ErrProvider means the translation backend returned unusable output
	// (length mismatch, garbled response).
	ErrProvider
	// ErrTimeout means a caller-imposed deadline expired while fetching,
	// translating or waiting on another job.
	ErrTimeout
	ErrUnknown
)

// Error is the typed error carried through the translation pipeline.
// Context holds diagnostic key/values (media id, byte offset, chunk range).
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "NotFound"
	case ErrUpstream:
		return "Upstream"
	case ErrParse:
		return "Parse"
	case ErrProvider:
		return "Provider"
	case ErrTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// IsKind reports whether err (or anything it wraps) is a pipeline error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == kind
	}
	return false
}

// KindOf extracts the pipeline error kind, defaulting to ErrUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ErrUnknown
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	return NewErrorWithCause(kind, message, err)
}
