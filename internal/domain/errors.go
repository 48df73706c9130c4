package domain

import (
	"errors"
	"fmt"
)

// Error codes reported to clients.
const (
	CodeValidation        = "validation_failed"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeRoomDeleted       = "room_deleted"
	CodeAlreadyDeleted    = "already_deleted"
	CodeInvalidStatus     = "invalid_status"
	CodeInvalidTransition = "invalid_transition"
	CodePersistence       = "persistence_failure"
	CodeInternal          = "internal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyDeleted    = errors.New("room already deleted")
	ErrRoomDeleted       = errors.New("room is deleted")
	ErrPersistence       = errors.New("persistence failure")
	ErrValidation        = errors.New("validation failed")

	// ErrInvalidStatus is an InvalidTransition towards a value outside the status set.
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrInvalidTransition)

	ErrRoomNotFound    = fmt.Errorf("room %w", ErrNotFound)
	ErrVisitorNotFound = fmt.Errorf("visitor %w", ErrNotFound)
)

func wrapValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ErrorCode maps err onto the client-facing error taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrRoomDeleted):
		return CodeRoomDeleted
	case errors.Is(err, ErrAlreadyDeleted):
		return CodeAlreadyDeleted
	case errors.Is(err, ErrInvalidStatus):
		return CodeInvalidStatus
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	default:
		return CodeInternal
	}
}

// ValidationError wraps msg as a validation failure.
func ValidationError(msg string) error {
	return wrapValidation(msg)
}
