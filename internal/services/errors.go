package services

import (
	"errors"
	"fmt"

	"relun-backend/internal/repository"
)

// Error kinds. Every error returned by a service matches exactly one of
// these with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnavailable  = errors.New("unavailable")
)

// Error carries a kind, a message safe to show to clients and an optional cause
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Public returns the client facing message
func (e *Error) Public() string {
	return e.Msg
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(what string) *Error {
	return newError(ErrNotFound, "%s not found", what)
}

func unauthorizedError(msg string) *Error {
	return newError(ErrUnauthorized, "%s", msg)
}

func unavailableError(cause error, msg string) *Error {
	return &Error{Kind: ErrUnavailable, Msg: msg, Cause: cause}
}

// Domain errors callers may test for directly
var (
	ErrAlreadySwiped = newError(ErrConflict, "already swiped on this user")
	ErrSelfSwipe     = newError(ErrValidation, "cannot swipe on yourself")
	ErrPhotoLimit    = newError(ErrValidation, "maximum %d photos allowed", MaxPhotos)
	ErrOTPExpired    = unauthorizedError("invalid or expired code")
	ErrOTPInvalid    = unauthorizedError("invalid or expired code")
	ErrNoOTPPending  = newError(ErrValidation, "no code requested, request one first")
	ErrUserDisabled  = newError(ErrForbidden, "account is disabled")
	ErrNotSender     = newError(ErrForbidden, "only the sender can delete a message")
	ErrTokenRevoked  = unauthorizedError("token has been revoked")
	ErrInvalidToken  = unauthorizedError("invalid token")
)

// storeError maps a repository failure onto the service taxonomy. what names
// the missing entity for ErrNotFound.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: ErrNotFound, Msg: what + " not found", Cause: err}
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: ErrConflict, Msg: what + " already exists", Cause: err}
	default:
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return err
		}
		return unavailableError(err, "storage unavailable")
	}
}
