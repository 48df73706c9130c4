package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const snippetLength = 120

type RoomStatus string

const (
	RoomStatusActive  RoomStatus = "active"
	RoomStatusClosed  RoomStatus = "closed"
	RoomStatusDeleted RoomStatus = "deleted"
)

// ParseRoomStatus accepts only the statuses staff may set directly.
func ParseRoomStatus(s string) (RoomStatus, error) {
	switch RoomStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RoomStatusActive:
		return RoomStatusActive, nil
	case RoomStatusClosed:
		return RoomStatusClosed, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Room is a support conversation between one visitor and staff.
// Status deleted is terminal.
type Room struct {
	ID            string
	VisitorID     uuid.UUID
	Status        RoomStatus
	IsActive      bool
	UnreadCount   int
	LastMessageAt time.Time
	LastSnippet   string
	LastSeq       int64
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRoom constructs an active room owned by visitorID.
func NewRoom(id string, visitorID uuid.UUID) *Room {
	now := time.Now().UTC()
	return &Room{
		ID:        id,
		VisitorID: visitorID,
		Status:    RoomStatusActive,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Room) Unread() bool {
	return r.UnreadCount > 0
}

func (r *Room) IsDeleted() bool {
	return r.Status == RoomStatusDeleted
}

// AcceptMessage applies a new message to the room and assigns its sequence
// number and timestamp. Timestamps never go backwards within a room.
func (r *Room) AcceptMessage(msg *Message, sender Principal, now time.Time) error {
	if r.IsDeleted() {
		return ErrRoomDeleted
	}

	if !sender.IsStaff() {
		r.UnreadCount++
		r.IsActive = true
		if r.Status == RoomStatusClosed {
			r.Status = RoomStatusActive
		}
	}

	now = now.UTC()
	if now.Before(r.LastMessageAt) {
		now = r.LastMessageAt
	}

	r.LastSeq++
	r.LastMessageAt = now
	r.LastSnippet = msg.Snippet()
	r.UpdatedAt = now

	msg.RoomID = r.ID
	msg.Seq = r.LastSeq
	msg.CreatedAt = now
	return nil
}

func (r *Room) MarkRead() {
	if r.UnreadCount == 0 {
		return
	}
	r.UnreadCount = 0
	r.UpdatedAt = time.Now().UTC()
}

func (r *Room) SetStatus(status RoomStatus) error {
	if r.IsDeleted() {
		return ErrInvalidTransition
	}
	if status != RoomStatusActive && status != RoomStatusClosed {
		return ErrInvalidStatus
	}
	if r.Status == status {
		return nil
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Room) SoftDelete() error {
	if r.IsDeleted() {
		return ErrAlreadyDeleted
	}
	r.Status = RoomStatusDeleted
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPresence flips the soft presence marker. Deleted rooms keep it false.
func (r *Room) SetPresence(active bool) {
	if r.IsDeleted() || r.IsActive == active {
		return
	}
	r.IsActive = active
	r.UpdatedAt = time.Now().UTC()
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetLength]) + "…"
}

// RoomSummary is a room joined with its visitor, as listed for staff.
type RoomSummary struct {
	Room
	VisitorName    string
	VisitorContact string
}
