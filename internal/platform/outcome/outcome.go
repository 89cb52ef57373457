// Package outcome classifies workflow failures into the three kinds the POS
// surfaces differently: local validation, logical backend rejection, and
// transport failure.
package outcome

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericFailure is shown for transport failures; their details go to the log.
const GenericFailure = "An error occurred while contacting the server. Please try again."

// ValidationError is raised before any remote call. It is always correctable
// by the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// BackendError means the remote call completed but reported a logical failure
// ({success: false} or an error field).
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Rejected builds a BackendError.
func Rejected(op, message string) error {
	return &BackendError{Op: op, Message: message}
}

// TransportError means the remote call itself did not complete.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a TransportError unless it is already classified.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var v *ValidationError
	var b *BackendError
	var t *TransportError
	if errors.As(err, &v) || errors.As(err, &b) || errors.As(err, &t) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsBackend reports whether err is a BackendError.
func IsBackend(err error) bool {
	var b *BackendError
	return errors.As(err, &b)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// UserMessage renders err for a dialog. Validation and backend messages are
// shown verbatim; anything else gets the generic text.
func UserMessage(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	var b *BackendError
	if errors.As(err, &b) {
		return b.Message
	}
	return GenericFailure
}

// HTTPStatus maps err onto a gateway response code.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsBackend(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
