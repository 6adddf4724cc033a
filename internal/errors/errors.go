package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConcurrencyConflict = errors.New("download already in progress")
	ErrShuttingDown        = errors.New("service is shutting down")
	ErrNoChapters          = &ValidationError{Message: "no chapters found"}
)

// TransportError is returned when a remote call fails at the network or HTTP level
// or when the response body cannot be parsed.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError reports a missing local record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ValidationError reports input or remote data that cannot be used.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
