package service

import (
	"context"

	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/hub"
)

type ChatInteractor interface {
	Join(ctx context.Context, identity domain.VisitorIdentity) (*JoinResult, error)
	JoinEndpoint(ctx context.Context, e *hub.Endpoint, identity domain.VisitorIdentity) (*JoinResult, error)
	JoinStaff(ctx context.Context, e *hub.Endpoint) error
	AdminJoinRoom(ctx context.Context, e *hub.Endpoint, roomID string) (*domain.Room, error)
	SendMessage(ctx context.Context, in SendMessageInput) (*domain.Message, error)
	MarkRead(ctx context.Context, actor domain.Principal, roomID string) (*domain.Room, error)
	SetRoomStatus(ctx context.Context, actor domain.Principal, roomID string, status string) (*domain.Room, error)
	DeleteRoom(ctx context.Context, actor domain.Principal, roomID string) error
	ListOpenRooms(ctx context.Context, actor domain.Principal) ([]*domain.RoomSummary, error)
	ListMessages(ctx context.Context, actor domain.Principal, roomID string) ([]*domain.Message, error)
	LeaveRoom(e *hub.Endpoint, roomID string)
	Disconnect(ctx context.Context, e *hub.Endpoint)
}

// Broadcaster is the part of the hub the chat service publishes through.
type Broadcaster interface {
	Join(e *hub.Endpoint, roomID string) error
	JoinStaffBroadcast(e *hub.Endpoint) error
	Leave(e *hub.Endpoint, roomID string)
	Disconnect(e *hub.Endpoint)
	PublishToRoom(roomID string, ev domain.Event) int
	PublishToStaff(ev domain.Event) int
	Members(group string) []*hub.Endpoint
	Groups(e *hub.Endpoint) []string
}

// AttachmentStore persists uploaded files and hands back a retrievable path.
type AttachmentStore interface {
	Save(ctx context.Context, upload *domain.Upload) (*domain.Attachment, error)
	Delete(ctx context.Context, attachment *domain.Attachment) error
}
