// Package apperr defines the error taxonomy shared by every subsystem.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purpose of HTTP status mapping and
// operator-facing logging. See the component design notes for the
// full trigger/effect table.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindNotFound
	KindStorageFailure
	KindExternalFailure
	KindConfigError
	KindCaptureError
	KindOcrError
	KindShutdownRequested
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindStorageFailure:
		return "storage_failure"
	case KindExternalFailure:
		return "external_failure"
	case KindConfigError:
		return "config_error"
	case KindCaptureError:
		return "capture_error"
	case KindOcrError:
		return "ocr_error"
	case KindShutdownRequested:
		return "shutdown_requested"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a Kind to the status code C9's handlers respond
// with, grounded on the original API's AppError::into_response match.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return 400
	case KindNotFound:
		return 404
	case KindExternalFailure:
		return 502
	default:
		return 500
	}
}

// Error is an AppError: a classified, wrapped error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error under kind.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

func InvalidRequest(format string, args ...any) error {
	return New(KindInvalidRequest, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Storage(err error, format string, args ...any) error {
	return Wrap(KindStorageFailure, fmt.Sprintf(format, args...), err)
}

func External(err error, format string, args ...any) error {
	return Wrap(KindExternalFailure, fmt.Sprintf(format, args...), err)
}
