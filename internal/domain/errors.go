package domain

import "errors"

// Domain errors
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrExternalService     = errors.New("external service failure")
	ErrTournamentFull      = errors.New("tournament is full")
	ErrAlreadyJoined       = errors.New("already joined this tournament")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrUnauthorized        = errors.New("authentication required")
	ErrForbidden           = errors.New("admin access required")
	ErrInternalError       = errors.New("internal server error")
)

// Not-found errors for specific entities. They all match ErrNotFound.
var (
	ErrTournamentNotFound   = notFound("tournament not found")
	ErrUserNotFound         = notFound("user not found")
	ErrTransactionNotFound  = notFound("transaction not found")
	ErrNotificationNotFound = notFound("notification not found")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvalidInput wraps ErrInvalidInput with a field-specific message.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Unwrap() error { return ErrInvalidInput }

// InvalidState wraps ErrInvalidState with a message naming the rejected transition.
func InvalidState(msg string) error {
	return &stateError{msg: msg}
}

type stateError struct{ msg string }

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Unwrap() error { return ErrInvalidState }
