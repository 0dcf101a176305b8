package library

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the concrete error is a *DomainError.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthorized      = errors.New("unauthorized")

	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrToolNotFound         = fmt.Errorf("tool %w", ErrNotFound)
	ErrLoanNotFound         = fmt.Errorf("loan %w", ErrNotFound)
	ErrSolicitationNotFound = fmt.Errorf("solicitation %w", ErrNotFound)
)

type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsBusinessError separates rule violations from storage failures.
func IsBusinessError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
