package domain

import "errors"

// Error kinds. Every error returned by the use case layer that is not an
// internal failure unwraps to exactly one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Error is a client-facing failure with a human readable message.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func NewValidationError(msg string) *Error { return &Error{kind: ErrValidation, msg: msg} }

func NewConflictError(msg string) *Error { return &Error{kind: ErrConflict, msg: msg} }

func NewNotFoundError(msg string) *Error { return &Error{kind: ErrNotFound, msg: msg} }

var (
	ErrPoolFieldsRequired = NewValidationError("Name, subnet, mask, and gateway are required")
	ErrIPRequired         = NewValidationError("IP address is required")
	ErrInvalidLastSeen    = NewValidationError("last_seen must be an RFC 3339 timestamp")

	ErrPoolNameTaken      = NewConflictError("IP pool with this name already exists")
	ErrPoolHasAssignments = NewConflictError("Cannot delete pool with assigned IPs")
	ErrIPAlreadyAssigned  = NewConflictError("IP address already exists in this pool")

	ErrPoolNotFound       = NewNotFoundError("IP pool not found")
	ErrAssignmentNotFound = NewNotFoundError("IP assignment not found")
)

// IsValidation, IsConflict and IsNotFound classify err by kind.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
