package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

const DefaultBuffer = 64

var (
	ErrEndpointClosed     = errors.New("endpoint closed")
	ErrEndpointBacklogged = errors.New("endpoint queue is full")
)

// Endpoint is one connected transport session. Events queue up in a bounded
// buffer that the transport drains; a full queue fails delivery instead of
// blocking the publisher.
type Endpoint struct {
	ID       string
	JoinedAt time.Time

	mu        sync.Mutex
	principal domain.Principal
	closed    bool
	events    chan domain.Event
}

func NewEndpoint(principal domain.Principal, buffer int) *Endpoint {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Endpoint{
		ID:        uuid.New().String(),
		JoinedAt:  time.Now().UTC(),
		principal: principal,
		events:    make(chan domain.Event, buffer),
	}
}

// Events is closed once the endpoint is closed.
func (e *Endpoint) Events() <-chan domain.Event {
	return e.events
}

// Send enqueues ev for this endpoint only.
func (e *Endpoint) Send(ev domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEndpointClosed
	}
	select {
	case e.events <- ev:
		return nil
	default:
		return ErrEndpointBacklogged
	}
}

// SetPrincipal replaces the principal once the session identifies itself.
func (e *Endpoint) SetPrincipal(p domain.Principal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.principal = p
}

func (e *Endpoint) Principal() domain.Principal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.principal
}

func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close is safe to call more than once.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
