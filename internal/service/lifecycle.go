package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/repository"
	"github.com/immxrtalbeast/supportchat/lib/keymutex"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

// RoomHook runs after a room write commits, while the room lock is still held.
type RoomHook func(room *domain.Room)

// MessageHook is the RoomHook counterpart for RecordMessage.
type MessageHook func(room *domain.Room, msg *domain.Message)

// RoomLifecycle owns every room mutation. Writes for one room are serialized
// by a per-room lock; different rooms proceed in parallel.
type RoomLifecycle struct {
	rooms repository.RoomRepository
	locks *keymutex.KeyMutex
	log   *slog.Logger
}

func NewRoomLifecycle(rooms repository.RoomRepository, log *slog.Logger) *RoomLifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &RoomLifecycle{
		rooms: rooms,
		locks: keymutex.New(),
		log:   log,
	}
}

// Open ensures the visitor's room exists and marks it present. created
// reports whether this call inserted the room. A deleted room is returned
// together with ErrRoomDeleted.
func (l *RoomLifecycle) Open(ctx context.Context, roomID string, visitorID uuid.UUID, onCommit func(room *domain.Room, created bool)) (*domain.Room, bool, error) {
	const op = "service.lifecycle.open"
	log := l.log.With(slog.String("op", op), slog.String("room_id", roomID))

	unlock := l.locks.Lock(roomID)
	defer unlock()

	room, created, err := l.rooms.Ensure(ctx, domain.NewRoom(roomID, visitorID))
	if err != nil {
		log.Error("failed to ensure room", sl.Err(err))
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if room.IsDeleted() {
		return room, false, fmt.Errorf("%s: %w", op, domain.ErrRoomDeleted)
	}

	if !created && !room.IsActive {
		room, err = l.rooms.Update(ctx, roomID, func(r *domain.Room) error {
			r.SetPresence(true)
			return nil
		})
		if err != nil {
			log.Error("failed to mark room present", sl.Err(err))
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if created {
		log.Info("room created", slog.String("visitor_id", visitorID.String()))
	}
	if onCommit != nil {
		onCommit(room, created)
	}
	return room, created, nil
}

// RecordMessage stores msg in roomID. When the room is missing and seed is
// set, the room and its first message are written in one transaction.
func (l *RoomLifecycle) RecordMessage(ctx context.Context, roomID string, seed *domain.Room, msg *domain.Message, sender domain.Principal, onCommit MessageHook) (*domain.Room, error) {
	const op = "service.lifecycle.recordMessage"
	log := l.log.With(slog.String("op", op), slog.String("room_id", roomID))

	unlock := l.locks.Lock(roomID)
	defer unlock()

	room, err := l.rooms.AppendMessage(ctx, roomID, seed, msg, func(r *domain.Room, m *domain.Message) error {
		return r.AcceptMessage(m, sender, m.CreatedAt)
	})
	if err != nil {
		log.Warn("message rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("message recorded",
		slog.Int64("seq", msg.Seq),
		slog.String("sender_role", string(sender.Role)),
		slog.Int("unread", room.UnreadCount),
	)
	if onCommit != nil {
		onCommit(room, msg)
	}
	return room, nil
}

func (l *RoomLifecycle) MarkRead(ctx context.Context, actor domain.Principal, roomID string, onCommit RoomHook) (*domain.Room, error) {
	const op = "service.lifecycle.markRead"
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	return l.mutate(ctx, op, roomID, func(r *domain.Room) error {
		r.MarkRead()
		return nil
	}, onCommit)
}

func (l *RoomLifecycle) SetStatus(ctx context.Context, actor domain.Principal, roomID string, status domain.RoomStatus, onCommit RoomHook) (*domain.Room, error) {
	const op = "service.lifecycle.setStatus"
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	return l.mutate(ctx, op, roomID, func(r *domain.Room) error {
		return r.SetStatus(status)
	}, onCommit)
}

func (l *RoomLifecycle) SoftDelete(ctx context.Context, actor domain.Principal, roomID string, onCommit RoomHook) (*domain.Room, error) {
	const op = "service.lifecycle.softDelete"
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	return l.mutate(ctx, op, roomID, func(r *domain.Room) error {
		return r.SoftDelete()
	}, onCommit)
}

// SetPresence updates the soft presence marker. Deleted rooms are left alone.
func (l *RoomLifecycle) SetPresence(ctx context.Context, roomID string, active bool) (*domain.Room, error) {
	const op = "service.lifecycle.setPresence"
	return l.mutate(ctx, op, roomID, func(r *domain.Room) error {
		r.SetPresence(active)
		return nil
	}, nil)
}

func (l *RoomLifecycle) ListOpenRooms(ctx context.Context, actor domain.Principal) ([]*domain.RoomSummary, error) {
	const op = "service.lifecycle.listOpenRooms"
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	rooms, err := l.rooms.ListVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rooms, nil
}

func (l *RoomLifecycle) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	const op = "service.lifecycle.get"
	room, err := l.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return room, nil
}

func (l *RoomLifecycle) Messages(ctx context.Context, roomID string) ([]*domain.Message, error) {
	const op = "service.lifecycle.messages"
	messages, err := l.rooms.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return messages, nil
}

func (l *RoomLifecycle) mutate(ctx context.Context, op, roomID string, apply repository.RoomMutation, onCommit RoomHook) (*domain.Room, error) {
	log := l.log.With(slog.String("op", op), slog.String("room_id", roomID))

	unlock := l.locks.Lock(roomID)
	defer unlock()

	room, err := l.rooms.Update(ctx, roomID, apply)
	if err != nil {
		log.Info("room update rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("room updated",
		slog.String("status", string(room.Status)),
		slog.Int("unread", room.UnreadCount),
		slog.Bool("is_active", room.IsActive),
	)
	if onCommit != nil {
		onCommit(room)
	}
	return room, nil
}
