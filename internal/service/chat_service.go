package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/hub"
	"github.com/immxrtalbeast/supportchat/internal/metrics"
	"github.com/immxrtalbeast/supportchat/internal/repository"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

type JoinResult struct {
	Visitor *domain.Visitor
	Room    *domain.Room
	Created bool
}

type SendMessageInput struct {
	RoomID string
	// Sender is the principal resolved at the transport boundary.
	Sender     domain.Principal
	Body       string
	Attachment *domain.Upload
	// IsStaff is what the client claims; it must match Sender.
	IsStaff bool
}

type ChatService struct {
	visitors         repository.VisitorRepository
	lifecycle        *RoomLifecycle
	hub              Broadcaster
	attachments      AttachmentStore
	metrics          *metrics.Metrics
	log              *slog.Logger
	maxMessageLength int
}

type Option func(*ChatService)

func WithAttachmentStore(store AttachmentStore) Option {
	return func(s *ChatService) { s.attachments = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ChatService) { s.metrics = m }
}

func WithMaxMessageLength(n int) Option {
	return func(s *ChatService) { s.maxMessageLength = n }
}

func NewChatService(visitors repository.VisitorRepository, lifecycle *RoomLifecycle, broadcaster Broadcaster, log *slog.Logger, opts ...Option) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	s := &ChatService{
		visitors:         visitors,
		lifecycle:        lifecycle,
		hub:              broadcaster,
		log:              log,
		maxMessageLength: domain.MaxMessageLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join upserts the visitor and opens the room derived from their identity.
// Staff are told about rooms this call creates.
func (s *ChatService) Join(ctx context.Context, identity domain.VisitorIdentity) (*JoinResult, error) {
	const op = "service.chat.join"
	log := s.log.With(slog.String("op", op))

	identity, err := identity.Normalize()
	if err != nil {
		return nil, s.reject(op, err)
	}

	visitor, err := s.visitors.Upsert(ctx, domain.NewVisitor(identity))
	if err != nil {
		log.Error("failed to upsert visitor", sl.Err(err))
		return nil, s.reject(op, err)
	}

	roomID := domain.RoomIDFor(visitor.Key())
	room, created, err := s.lifecycle.Open(ctx, roomID, visitor.ID, func(room *domain.Room, created bool) {
		if created {
			s.hub.PublishToStaff(domain.NewRoomEvent(room, visitor))
		}
	})
	if err != nil {
		return nil, s.reject(op, err)
	}

	log.Info("visitor joined",
		slog.String("visitor_id", visitor.ID.String()),
		slog.String("room_id", room.ID),
		slog.Bool("created", created),
	)
	return &JoinResult{Visitor: visitor, Room: room, Created: created}, nil
}

// JoinEndpoint joins and subscribes e to the visitor's room. The
// acknowledgement goes to e alone.
func (s *ChatService) JoinEndpoint(ctx context.Context, e *hub.Endpoint, identity domain.VisitorIdentity) (*JoinResult, error) {
	const op = "service.chat.joinEndpoint"

	if e.Principal().IsStaff() {
		return nil, s.reject(op, domain.ErrUnauthorized)
	}

	res, err := s.Join(ctx, identity)
	if err != nil {
		return nil, err
	}

	// Switching identity moves the endpoint out of its previous room.
	var left []string
	for _, roomID := range s.hub.Groups(e) {
		if roomID == hub.StaffGroup || roomID == res.Room.ID {
			continue
		}
		s.hub.Leave(e, roomID)
		left = append(left, roomID)
	}
	s.releasePresence(ctx, op, left)

	e.SetPrincipal(domain.VisitorPrincipal(res.Visitor))
	if err := s.hub.Join(e, res.Room.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := e.Send(domain.RoomJoinedEvent(res.Room)); err != nil {
		s.log.Warn("failed to ack join", slog.String("op", op), slog.String("endpoint_id", e.ID), sl.Err(err))
	}
	return res, nil
}

func (s *ChatService) JoinStaff(ctx context.Context, e *hub.Endpoint) error {
	const op = "service.chat.joinStaff"
	if !e.Principal().IsStaff() {
		return s.reject(op, domain.ErrUnauthorized)
	}
	if err := s.hub.JoinStaffBroadcast(e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AdminJoinRoom subscribes a staff endpoint to a room and to the staff group,
// and clears the room's unread marker.
func (s *ChatService) AdminJoinRoom(ctx context.Context, e *hub.Endpoint, roomID string) (*domain.Room, error) {
	const op = "service.chat.adminJoinRoom"
	actor := e.Principal()
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID), slog.String("staff_id", actor.ID))

	if !actor.IsStaff() {
		return nil, s.reject(op, domain.ErrUnauthorized)
	}
	if strings.TrimSpace(roomID) == "" {
		return nil, s.reject(op, domain.ValidationError("room id is required"))
	}

	current, err := s.lifecycle.Get(ctx, roomID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if current.IsDeleted() {
		return nil, s.reject(op, domain.ErrRoomDeleted)
	}

	room, err := s.lifecycle.MarkRead(ctx, actor, roomID, nil)
	if err != nil {
		return nil, s.reject(op, err)
	}

	if err := s.hub.Join(e, roomID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hub.JoinStaffBroadcast(e); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.hub.PublishToRoom(roomID, domain.AdminJoinedEvent(roomID, actor))

	log.Info("staff joined room")
	return room, nil
}

// SendMessage records a message and announces it. Nothing is published unless
// the write committed.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	const op = "service.chat.sendMessage"
	log := s.log.With(slog.String("op", op), slog.String("room_id", in.RoomID))

	if strings.TrimSpace(in.RoomID) == "" {
		return nil, s.reject(op, domain.ValidationError("room id is required"))
	}
	body, err := domain.NormalizeBody(in.Body, in.Attachment != nil, s.maxMessageLength)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if in.Attachment != nil && s.attachments == nil {
		return nil, s.reject(op, domain.ValidationError("attachments are not accepted"))
	}

	sender, seed, err := s.authorizeSender(ctx, in)
	if err != nil {
		return nil, s.reject(op, err)
	}

	var attachment *domain.Attachment
	if in.Attachment != nil {
		attachment, err = s.attachments.Save(ctx, in.Attachment)
		if err != nil {
			log.Error("failed to store attachment", sl.Err(err))
			return nil, s.reject(op, err)
		}
	}

	msg := domain.NewMessage(sender, body, attachment)
	_, err = s.lifecycle.RecordMessage(ctx, in.RoomID, seed, msg, sender, func(room *domain.Room, msg *domain.Message) {
		s.hub.PublishToRoom(room.ID, domain.NewMessageEvent(msg))
		if !sender.IsStaff() {
			s.hub.PublishToStaff(domain.NewUserMessageEvent(msg))
		}
	})
	if err != nil {
		if attachment != nil {
			if derr := s.attachments.Delete(context.WithoutCancel(ctx), attachment); derr != nil {
				log.Error("failed to remove orphaned attachment", sl.Err(derr))
			}
		}
		return nil, s.reject(op, err)
	}

	s.metrics.MessageRecorded(string(sender.Role))
	log.Info("message sent",
		slog.String("message_id", msg.ID.String()),
		slog.Int64("seq", msg.Seq),
		slog.String("sender_role", string(sender.Role)),
	)
	return msg, nil
}

func (s *ChatService) MarkRead(ctx context.Context, actor domain.Principal, roomID string) (*domain.Room, error) {
	const op = "service.chat.markRead"
	room, err := s.lifecycle.MarkRead(ctx, actor, roomID, nil)
	if err != nil {
		return nil, s.reject(op, err)
	}
	return room, nil
}

func (s *ChatService) SetRoomStatus(ctx context.Context, actor domain.Principal, roomID string, status string) (*domain.Room, error) {
	const op = "service.chat.setRoomStatus"
	if !actor.IsStaff() {
		return nil, s.reject(op, domain.ErrUnauthorized)
	}
	next, err := domain.ParseRoomStatus(status)
	if err != nil {
		return nil, s.reject(op, err)
	}

	room, err := s.lifecycle.SetStatus(ctx, actor, roomID, next, s.announceStatus)
	if err != nil {
		return nil, s.reject(op, err)
	}
	s.log.Info("room status changed",
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("status", string(room.Status)),
	)
	return room, nil
}

func (s *ChatService) DeleteRoom(ctx context.Context, actor domain.Principal, roomID string) error {
	const op = "service.chat.deleteRoom"
	if _, err := s.lifecycle.SoftDelete(ctx, actor, roomID, s.announceStatus); err != nil {
		return s.reject(op, err)
	}
	s.log.Info("room deleted", slog.String("op", op), slog.String("room_id", roomID))
	return nil
}

func (s *ChatService) ListOpenRooms(ctx context.Context, actor domain.Principal) ([]*domain.RoomSummary, error) {
	const op = "service.chat.listOpenRooms"
	rooms, err := s.lifecycle.ListOpenRooms(ctx, actor)
	if err != nil {
		return nil, s.reject(op, err)
	}
	return rooms, nil
}

// ListMessages returns a room's history to staff or to the visitor who owns it.
func (s *ChatService) ListMessages(ctx context.Context, actor domain.Principal, roomID string) ([]*domain.Message, error) {
	const op = "service.chat.listMessages"

	room, err := s.lifecycle.Get(ctx, roomID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if !actor.IsStaff() {
		visitor, err := s.resolveVisitor(ctx, actor)
		if err != nil {
			return nil, s.reject(op, err)
		}
		if room.VisitorID != visitor.ID && domain.RoomIDFor(visitor.Key()) != room.ID {
			return nil, s.reject(op, domain.ErrUnauthorized)
		}
		if room.IsDeleted() {
			return nil, s.reject(op, domain.ErrRoomDeleted)
		}
	}

	messages, err := s.lifecycle.Messages(ctx, roomID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	return messages, nil
}

func (s *ChatService) LeaveRoom(e *hub.Endpoint, roomID string) {
	s.hub.Leave(e, roomID)
}

// Disconnect drops e from every group. A room whose last visitor endpoint
// went away is marked not present.
func (s *ChatService) Disconnect(ctx context.Context, e *hub.Endpoint) {
	const op = "service.chat.disconnect"

	groups := s.hub.Groups(e)
	s.hub.Disconnect(e)

	if e.Principal().IsStaff() {
		return
	}
	s.releasePresence(ctx, op, groups)
}

// releasePresence clears the visitor presence flag of every room in rooms
// that no longer has a visitor endpoint subscribed.
func (s *ChatService) releasePresence(ctx context.Context, op string, rooms []string) {
	for _, roomID := range rooms {
		if roomID == hub.StaffGroup || hasVisitor(s.hub.Members(roomID)) {
			continue
		}
		if _, err := s.lifecycle.SetPresence(ctx, roomID, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("failed to clear room presence", slog.String("op", op), slog.String("room_id", roomID), sl.Err(err))
		}
	}
}

// authorizeSender resolves who is speaking. Visitors may only write to the
// room derived from their own identity; for them the room is created when it
// does not exist yet.
func (s *ChatService) authorizeSender(ctx context.Context, in SendMessageInput) (domain.Principal, *domain.Room, error) {
	if in.Sender.IsStaff() {
		return in.Sender, nil, nil
	}
	if in.IsStaff {
		return domain.Principal{}, nil, domain.ErrUnauthorized
	}

	visitor, err := s.resolveVisitor(ctx, in.Sender)
	if err != nil {
		return domain.Principal{}, nil, err
	}
	if domain.RoomIDFor(visitor.Key()) != in.RoomID {
		return domain.Principal{}, nil, domain.ErrUnauthorized
	}
	return domain.VisitorPrincipal(visitor), domain.NewRoom(in.RoomID, visitor.ID), nil
}

func (s *ChatService) resolveVisitor(ctx context.Context, p domain.Principal) (*domain.Visitor, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	visitor, err := s.visitors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return visitor, nil
}

func (s *ChatService) announceStatus(room *domain.Room) {
	s.hub.PublishToRoom(room.ID, domain.RoomStatusEvent(room))
}

func (s *ChatService) reject(op string, err error) error {
	s.metrics.Rejected(op, domain.ErrorCode(err))
	return fmt.Errorf("%s: %w", op, err)
}

func hasVisitor(members []*hub.Endpoint) bool {
	for _, e := range members {
		if !e.Principal().IsStaff() {
			return true
		}
	}
	return false
}
