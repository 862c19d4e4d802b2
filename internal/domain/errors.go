package domain

import "errors"

// Sentinel errors shared by the gateway components. Callers match with errors.Is.
var (
	// ErrValidation marks a malformed tool call, rule or request.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateRule is returned when a rule name is already registered.
	ErrDuplicateRule = errors.New("duplicate rule")
	// ErrConcurrentConfirmation is returned when a session already has a pending confirmation.
	ErrConcurrentConfirmation = errors.New("confirmation already pending for session")
	// ErrNotFound is returned for unknown operation or confirmation ids.
	ErrNotFound = errors.New("not found")
	// ErrNoInverseKnown means no rollback exists; manual rollback required.
	ErrNoInverseKnown = errors.New("no inverse known, manual rollback required")
	// ErrBlocked is returned when an operation is refused by policy.
	ErrBlocked = errors.New("operation blocked by policy")
)
