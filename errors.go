package actionkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for actionkit operations.
var (
	// ErrInvalidDefinition is returned when an action or role definition fails validation.
	ErrInvalidDefinition = errors.New("actionkit: invalid definition")

	// ErrUnknownRole is returned when a role identifier is not defined.
	ErrUnknownRole = errors.New("actionkit: unknown role")

	// ErrUnknownAction is returned when an action id is not defined.
	ErrUnknownAction = errors.New("actionkit: unknown action")

	// ErrNoEvaluator is returned when no evaluator is registered for a target type.
	ErrNoEvaluator = errors.New("actionkit: no evaluator for target")

	// ErrUnauthorized is returned when an authority is not allowed to perform an action.
	ErrUnauthorized = errors.New("actionkit: unauthorized")

	// ErrNoAuthority is returned when the authority is not found in context.
	ErrNoAuthority = errors.New("actionkit: no authority in context")

	// ErrInvalidTarget is returned when a target cannot be resolved from a request.
	ErrInvalidTarget = errors.New("actionkit: invalid target")

	// ErrMissingManager is returned when a root target would be left without a manager.
	ErrMissingManager = errors.New("actionkit: missing manager on root target")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("actionkit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err       error  // Underlying sentinel error
	Message   string // Additional context
	Target    string // Target id involved (if applicable)
	Role      string // Role identifier involved (if applicable)
	Authority string // Authority involved (if applicable)
	Action    string // Action id involved (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithTarget adds target information to the error.
func (e *Error) WithTarget(targetID string) *Error {
	e.Target = targetID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role string) *Error {
	e.Role = role
	return e
}

// WithAuthority adds authority information to the error.
func (e *Error) WithAuthority(authorityID string) *Error {
	e.Authority = authorityID
	return e
}

// WithAction adds action information to the error.
func (e *Error) WithAction(actionID string) *Error {
	e.Action = actionID
	return e
}

// IsUnauthorized checks if an error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnknownRole checks if an error is due to an undefined role.
func IsUnknownRole(err error) bool {
	return errors.Is(err, ErrUnknownRole)
}

// IsNoEvaluator checks if an error is due to a target with no evaluator.
func IsNoEvaluator(err error) bool {
	return errors.Is(err, ErrNoEvaluator)
}

// IsInvalidTarget checks if an error is due to an unresolvable target.
func IsInvalidTarget(err error) bool {
	return errors.Is(err, ErrInvalidTarget)
}

// IsInvalidDefinition checks if an error is due to a bad definition.
func IsInvalidDefinition(err error) bool {
	return errors.Is(err, ErrInvalidDefinition)
}
