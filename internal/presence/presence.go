package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/immxrtalbeast/supportchat/internal/domain"
)

// Entry is one connected endpoint inside a room.
type Entry struct {
	EndpointID  string      `json:"endpoint_id"`
	PrincipalID string      `json:"principal_id"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	Since       time.Time   `json:"since"`
}

type Tracker interface {
	Add(ctx context.Context, roomID string, entry Entry) error
	Remove(ctx context.Context, roomID, endpointID string) error
	Online(ctx context.Context, roomID string) ([]Entry, error)
}

type MemoryTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Entry
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{rooms: make(map[string]map[string]Entry)}
}

func (t *MemoryTracker) Add(ctx context.Context, roomID string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, ok := t.rooms[roomID]
	if !ok {
		entries = make(map[string]Entry)
		t.rooms[roomID] = entries
	}
	entries[entry.EndpointID] = entry
	return nil
}

func (t *MemoryTracker) Remove(ctx context.Context, roomID, endpointID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if entries, ok := t.rooms[roomID]; ok {
		delete(entries, endpointID)
		if len(entries) == 0 {
			delete(t.rooms, roomID)
		}
	}
	return nil
}

func (t *MemoryTracker) Online(ctx context.Context, roomID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.rooms[roomID]))
	for _, e := range t.rooms[roomID] {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Since.Equal(entries[j].Since) {
			return entries[i].Since.Before(entries[j].Since)
		}
		return entries[i].EndpointID < entries[j].EndpointID
	})
}
