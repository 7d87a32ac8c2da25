// Package errs defines the error taxonomy shared by all services so HTTP
// handlers can map failures to status codes and machine-readable reasons.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindTransient
	KindUnexpected
)

// Reason codes surfaced to callers on conflicts and validation failures.
const (
	ReasonNotFound           = "NOT_FOUND"
	ReasonInactive           = "INACTIVE"
	ReasonNotYetActive       = "NOT_YET_ACTIVE"
	ReasonExpired            = "EXPIRED"
	ReasonLimitReached       = "LIMIT_REACHED"
	ReasonTicketTypeMismatch = "TICKET_TYPE_MISMATCH"
	ReasonLimitRace          = "LIMIT_RACE"
	ReasonInvalidTransition  = "INVALID_TRANSITION"
)

type Error struct {
	Kind          Kind
	Reason        string
	Field         string
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Reason:  ReasonNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func Conflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

// Transient marks a retryable store or collaborator failure. Deadline and
// cancellation errors are always treated as transient.
func Transient(op string, err error) *Error {
	return &Error{
		Kind:    KindTransient,
		Message: fmt.Sprintf("%s failed, retry later", op),
		Err:     err,
	}
}

// Unexpected tags the error with a correlation id that is logged and
// returned to the caller instead of internal detail.
func Unexpected(err error) *Error {
	return &Error{
		Kind:          KindUnexpected,
		Message:       "unexpected internal error",
		CorrelationID: uuid.NewString(),
		Err:           err,
	}
}

// KindOf classifies any error, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindUnexpected
}

// ReasonOf returns the machine reason code, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func CorrelationOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CorrelationID
	}
	return ""
}

func IsConflict(err error) bool  { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		// Illegal transitions and lost redemption races are caller errors
		// with a specific reason code, per the API contract.
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
