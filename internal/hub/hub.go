package hub

import (
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/metrics"
	"github.com/immxrtalbeast/supportchat/lib/keymutex"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

// StaffGroup is the reserved group every connected operator joins.
const StaffGroup = "staff-broadcast"

// Hub tracks which endpoints are subscribed to which groups and fans events
// out to them. Publishes to the same group are serialized, so two events for
// one room reach every endpoint queue in the order they were published.
type Hub struct {
	mu          sync.RWMutex
	groups      map[string]map[string]*Endpoint
	memberships map[string]map[string]struct{}
	endpoints   map[string]*Endpoint

	publishLocks *keymutex.KeyMutex
	metrics      *metrics.Metrics
	log          *slog.Logger
}

func New(log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		groups:       make(map[string]map[string]*Endpoint),
		memberships:  make(map[string]map[string]struct{}),
		endpoints:    make(map[string]*Endpoint),
		publishLocks: keymutex.New(),
		metrics:      m,
		log:          log,
	}
}

func (h *Hub) Join(e *Endpoint, roomID string) error {
	return h.join(e, roomID)
}

func (h *Hub) JoinStaffBroadcast(e *Endpoint) error {
	return h.join(e, StaffGroup)
}

func (h *Hub) Leave(e *Endpoint, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[roomID]; ok {
		delete(members, e.ID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
	if groups, ok := h.memberships[e.ID]; ok {
		delete(groups, roomID)
	}
}

// Disconnect removes e from every group and closes it.
func (h *Hub) Disconnect(e *Endpoint) {
	h.remove(e)
	e.Close()
}

// PublishToRoom hands ev to every endpoint subscribed to roomID and returns
// how many accepted it. Endpoints that fail are pruned.
func (h *Hub) PublishToRoom(roomID string, ev domain.Event) int {
	return h.publish(roomID, ev)
}

func (h *Hub) PublishToStaff(ev domain.Event) int {
	return h.publish(StaffGroup, ev)
}

// Subscribers lists the endpoint ids currently in group.
func (h *Hub) Subscribers(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		ids = append(ids, id)
	}
	return ids
}

// Groups lists the groups e belongs to.
func (h *Hub) Groups(e *Endpoint) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]string, 0, len(h.memberships[e.ID]))
	for g := range h.memberships[e.ID] {
		groups = append(groups, g)
	}
	return groups
}

func (h *Hub) join(e *Endpoint, group string) error {
	if e.Closed() {
		return ErrEndpointClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.endpoints[e.ID]; !ok {
		h.endpoints[e.ID] = e
		h.memberships[e.ID] = make(map[string]struct{})
		h.metrics.EndpointAdded()
	}

	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Endpoint)
		h.groups[group] = members
	}
	members[e.ID] = e
	h.memberships[e.ID][group] = struct{}{}
	return nil
}

func (h *Hub) remove(e *Endpoint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.endpoints[e.ID]; !ok {
		return false
	}
	for group := range h.memberships[e.ID] {
		if members, ok := h.groups[group]; ok {
			delete(members, e.ID)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	delete(h.memberships, e.ID)
	delete(h.endpoints, e.ID)
	h.metrics.EndpointRemoved()
	return true
}

func (h *Hub) publish(group string, ev domain.Event) int {
	unlock := h.publishLocks.Lock(group)
	defer unlock()

	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.groups[group]))
	for _, e := range h.groups[group] {
		targets = append(targets, e)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, e := range targets {
		if err := e.Send(ev); err != nil {
			h.prune(e, group, ev, err)
			continue
		}
		delivered++
		h.metrics.Delivered(string(ev.Type))
	}
	return delivered
}

func (h *Hub) prune(e *Endpoint, group string, ev domain.Event, cause error) {
	if !h.remove(e) {
		return
	}
	e.Close()
	h.metrics.Pruned()
	h.log.Warn("endpoint pruned",
		slog.String("endpoint_id", e.ID),
		slog.String("group", group),
		slog.String("event", string(ev.Type)),
		sl.Err(cause),
	)
}

// Members returns the endpoints currently in group.
func (h *Hub) Members(group string) []*Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Endpoint, 0, len(h.groups[group]))
	for _, e := range h.groups[group] {
		members = append(members, e)
	}
	return members
}
