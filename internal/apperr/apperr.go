package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericFailure is the only message shown to a user for transport and concurrency failures.
const GenericFailure = "Request failed. Please try again later."

// ValidationError is a local input error. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError with a formatted reason.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransportError describes a network or HTTP failure of a single operation.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s: bad status %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: bad status: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	default:
		return fmt.Sprintf("%s: transport error", e.Op)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError unless it already is one.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// ConcurrentMutationError is returned when a mutation for the key is still pending.
type ConcurrentMutationError struct {
	Key string
}

func (e *ConcurrentMutationError) Error() string {
	return fmt.Sprintf("mutation for %q is already in progress", e.Key)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsConcurrentMutation(err error) bool {
	var target *ConcurrentMutationError
	return errors.As(err, &target)
}

// UserMessage maps err to the text shown to the end user.
// Validation errors are shown as is; every other cause collapses into GenericFailure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return GenericFailure
}
