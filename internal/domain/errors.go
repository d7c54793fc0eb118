package domain

import "fmt"

// basic errors that can surface from the chat core
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrUnauthorized    Error = "unauthorized"
	ErrValidation      Error = "validation failed"
	ErrNotFound        Error = "not found"
	ErrUpload          Error = "upload failed"
	ErrDeliveryDropped Error = "delivery dropped"
)

// ErrExpired is returned for a well-signed token past its expiry.
// errors.Is(ErrExpired, ErrUnauthorized) holds.
var ErrExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)

// ValidationError carries the reason shown to the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
