package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

// InMemoryRoomRepository keeps rooms and messages in process memory.
// Every read returns a copy so callers never share state with the store.
type InMemoryRoomRepository struct {
	mu       sync.RWMutex
	rooms    map[string]*domain.Room
	messages map[string][]*domain.Message
	visitors *InMemoryVisitorRepository
}

func NewInMemoryRoomRepository(visitors *InMemoryVisitorRepository) *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms:    make(map[string]*domain.Room),
		messages: make(map[string][]*domain.Message),
		visitors: visitors,
	}
}

func (r *InMemoryRoomRepository) Ensure(ctx context.Context, room *domain.Room) (*domain.Room, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if room == nil {
		return nil, false, errors.New("room is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[room.ID]; ok {
		return cloneRoom(existing), false, nil
	}
	stored := cloneRoom(room)
	r.rooms[room.ID] = stored
	return cloneRoom(stored), true, nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (r *InMemoryRoomRepository) Update(ctx context.Context, id string, apply RoomMutation) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	room := cloneRoom(stored)
	if err := apply(room); err != nil {
		return nil, err
	}
	room.Version = stored.Version + 1
	r.rooms[id] = room
	return cloneRoom(room), nil
}

func (r *InMemoryRoomRepository) AppendMessage(ctx context.Context, roomID string, seed *domain.Room, msg *domain.Message, apply MessageMutation) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("message is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var room *domain.Room
	stored, ok := r.rooms[roomID]
	switch {
	case ok:
		room = cloneRoom(stored)
	case seed != nil:
		room = cloneRoom(seed)
	default:
		return nil, domain.ErrRoomNotFound
	}

	pending := cloneMessage(msg)
	pending.CreatedAt = nowUTC()
	if err := apply(room, pending); err != nil {
		return nil, err
	}

	room.Version++
	r.rooms[roomID] = room
	r.messages[roomID] = append(r.messages[roomID], cloneMessage(pending))

	*msg = *pending
	return cloneRoom(room), nil
}

func (r *InMemoryRoomRepository) ListVisible(ctx context.Context) ([]*domain.RoomSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	result := make([]*domain.RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.IsDeleted() {
			continue
		}
		result = append(result, &domain.RoomSummary{Room: *cloneRoom(room)})
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if r.visitors != nil {
		for _, summary := range result {
			v, err := r.visitors.GetByID(ctx, summary.VisitorID)
			if err != nil {
				continue
			}
			summary.VisitorName = v.Name
			summary.VisitorContact = v.Contact
		}
	}
	return result, nil
}

func (r *InMemoryRoomRepository) ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.messages[roomID]
	result := make([]*domain.Message, 0, len(stored))
	for _, msg := range stored {
		result = append(result, cloneMessage(msg))
	}
	return result, nil
}

type InMemoryVisitorRepository struct {
	mu       sync.RWMutex
	visitors map[uuid.UUID]*domain.Visitor
	keys     map[string]uuid.UUID
}

func NewInMemoryVisitorRepository() *InMemoryVisitorRepository {
	return &InMemoryVisitorRepository{
		visitors: make(map[uuid.UUID]*domain.Visitor),
		keys:     make(map[string]uuid.UUID),
	}
}

func (r *InMemoryVisitorRepository) Upsert(ctx context.Context, visitor *domain.Visitor) (*domain.Visitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitor == nil {
		return nil, errors.New("visitor is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := visitor.Key()
	if id, ok := r.keys[key]; ok {
		existing := r.visitors[id]
		existing.Merge(visitor, nowUTC())
		return cloneVisitor(existing), nil
	}

	stored := cloneVisitor(visitor)
	stored.Name = stored.DisplayName()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	r.visitors[stored.ID] = stored
	r.keys[key] = stored.ID
	return cloneVisitor(stored), nil
}

func (r *InMemoryVisitorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Visitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	visitor, ok := r.visitors[id]
	if !ok {
		return nil, domain.ErrVisitorNotFound
	}
	return cloneVisitor(visitor), nil
}
