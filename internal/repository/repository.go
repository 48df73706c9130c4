package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

// RoomMutation runs against the stored room inside the write transaction.
// A non-nil error aborts the write and leaves the room untouched.
type RoomMutation func(room *domain.Room) error

// MessageMutation is a RoomMutation that also sees the message being appended.
// The store stamps msg.CreatedAt with its own clock before calling it.
type MessageMutation func(room *domain.Room, msg *domain.Message) error

type VisitorRepository interface {
	Upsert(ctx context.Context, visitor *domain.Visitor) (*domain.Visitor, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Visitor, error)
}

type RoomRepository interface {
	// Ensure inserts room unless a room with the same id exists and returns
	// the stored room. created reports whether this call inserted it.
	Ensure(ctx context.Context, room *domain.Room) (stored *domain.Room, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Update(ctx context.Context, id string, apply RoomMutation) (*domain.Room, error)
	// AppendMessage stores msg and the room changes apply makes in one
	// transaction. When the room is missing and seed is not nil, seed is
	// created in the same transaction.
	AppendMessage(ctx context.Context, roomID string, seed *domain.Room, msg *domain.Message, apply MessageMutation) (*domain.Room, error)
	ListVisible(ctx context.Context) ([]*domain.RoomSummary, error)
	ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error)
}
