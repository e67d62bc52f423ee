package analytics

import (
	"errors"
	"fmt"
)

// ServiceError is a structured {"error": "..."} reply from the service.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: service error (status %d): %s", e.Op, e.Status, e.Message)
}

// TransportError covers everything that is not a structured service reply:
// unreachable host, timeout, non-2xx status without an error body, or a body
// that could not be decoded. Status is zero when no response arrived.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Describe returns the text shown to the user for err: the service-provided
// message when there is one, otherwise fallback.
func Describe(err error, fallback string) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
