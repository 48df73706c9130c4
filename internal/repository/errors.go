package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/immxrtalbeast/supportchat/internal/domain"
	"gorm.io/gorm"
)

var errVersionConflict = errors.New("room version conflict")

const maxWriteAttempts = 3

// wrapStoreErr keeps domain and context errors intact and marks everything
// else coming out of the store as a persistence failure.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrRoomDeleted),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyDeleted),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrPersistence),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
	}
}
