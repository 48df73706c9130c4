package domain

import "time"

type EventType string

// Outbound events pushed to endpoints.
const (
	EventRoomJoined     EventType = "room_joined"
	EventNewMessage     EventType = "new_message"
	EventNewUserMessage EventType = "new_user_message"
	EventNewRoom        EventType = "new_room"
	EventAdminJoined    EventType = "admin_joined"
	EventRoomStatus     EventType = "room_status"
	EventError          EventType = "error"
)

type Event struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

type AttachmentPayload struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

type MessagePayload struct {
	ID         string             `json:"id"`
	RoomID     string             `json:"room_id"`
	Seq        int64              `json:"seq"`
	Body       string             `json:"body"`
	Sender     string             `json:"sender"`
	SenderID   string             `json:"sender_id"`
	SenderRole Role               `json:"sender_role"`
	CreatedAt  time.Time          `json:"created_at"`
	Attachment *AttachmentPayload `json:"attachment,omitempty"`
}

type NotificationPayload struct {
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomJoinedPayload struct {
	RoomID    string `json:"room_id"`
	VisitorID string `json:"visitor_id"`
}

type NewRoomPayload struct {
	RoomID         string    `json:"room_id"`
	VisitorName    string    `json:"visitor_name"`
	VisitorContact string    `json:"visitor_contact,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type AdminJoinedPayload struct {
	RoomID    string `json:"room_id"`
	StaffName string `json:"staff_name"`
}

type RoomStatusPayload struct {
	RoomID string     `json:"room_id"`
	Status RoomStatus `json:"status"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MessageToPayload(m *Message) MessagePayload {
	p := MessagePayload{
		ID:         m.ID.String(),
		RoomID:     m.RoomID,
		Seq:        m.Seq,
		Body:       m.Body,
		Sender:     m.SenderName,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		CreatedAt:  m.CreatedAt,
	}
	if a := m.Attachment; a != nil {
		p.Attachment = &AttachmentPayload{
			URL:         a.Path,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
		}
	}
	return p
}

func NewMessageEvent(m *Message) Event {
	return Event{Type: EventNewMessage, RoomID: m.RoomID, Payload: MessageToPayload(m)}
}

func NewUserMessageEvent(m *Message) Event {
	return Event{
		Type:   EventNewUserMessage,
		RoomID: m.RoomID,
		Payload: NotificationPayload{
			RoomID:    m.RoomID,
			Sender:    m.SenderName,
			Snippet:   m.Snippet(),
			CreatedAt: m.CreatedAt,
		},
	}
}

func RoomJoinedEvent(room *Room) Event {
	return Event{
		Type:    EventRoomJoined,
		RoomID:  room.ID,
		Payload: RoomJoinedPayload{RoomID: room.ID, VisitorID: room.VisitorID.String()},
	}
}

func NewRoomEvent(room *Room, visitor *Visitor) Event {
	return Event{
		Type:   EventNewRoom,
		RoomID: room.ID,
		Payload: NewRoomPayload{
			RoomID:         room.ID,
			VisitorName:    visitor.DisplayName(),
			VisitorContact: visitor.Contact,
			CreatedAt:      room.CreatedAt,
		},
	}
}

func AdminJoinedEvent(roomID string, staff Principal) Event {
	return Event{
		Type:    EventAdminJoined,
		RoomID:  roomID,
		Payload: AdminJoinedPayload{RoomID: roomID, StaffName: staff.Name},
	}
}

func RoomStatusEvent(room *Room) Event {
	return Event{
		Type:    EventRoomStatus,
		RoomID:  room.ID,
		Payload: RoomStatusPayload{RoomID: room.ID, Status: room.Status},
	}
}

func ErrorEvent(code, message string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Code: code, Message: message}}
}
