package converter

import (
	"time"

	"github.com/immxrtalbeast/supportchat/internal/domain"
)

type RoomResponse struct {
	ID            string            `json:"id"`
	VisitorID     string            `json:"visitor_id"`
	Status        domain.RoomStatus `json:"status"`
	IsActive      bool              `json:"is_active"`
	UnreadCount   int               `json:"unread_count"`
	HasUnread     bool              `json:"has_unread"`
	LastMessage   string            `json:"last_message,omitempty"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type RoomSummaryResponse struct {
	RoomResponse
	VisitorName    string `json:"visitor_name"`
	VisitorContact string `json:"visitor_contact,omitempty"`
}

type VisitorResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact,omitempty"`
	Username string `json:"username,omitempty"`
}

type JoinResponse struct {
	Visitor VisitorResponse `json:"visitor"`
	Room    *RoomResponse   `json:"room"`
	Created bool            `json:"created"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	resp := &RoomResponse{
		ID:          r.ID,
		VisitorID:   r.VisitorID.String(),
		Status:      r.Status,
		IsActive:    r.IsActive,
		UnreadCount: r.UnreadCount,
		HasUnread:   r.Unread(),
		LastMessage: r.LastSnippet,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if !r.LastMessageAt.IsZero() {
		at := r.LastMessageAt
		resp.LastMessageAt = &at
	}
	return resp
}

func RoomSummariesToApi(rooms []*domain.RoomSummary) []RoomSummaryResponse {
	out := make([]RoomSummaryResponse, 0, len(rooms))
	for _, s := range rooms {
		out = append(out, RoomSummaryResponse{
			RoomResponse:   *RoomToApi(&s.Room),
			VisitorName:    s.VisitorName,
			VisitorContact: s.VisitorContact,
		})
	}
	return out
}

func VisitorToApi(v *domain.Visitor) VisitorResponse {
	return VisitorResponse{
		ID:       v.ID.String(),
		Name:     v.Name,
		Contact:  v.Contact,
		Username: v.Username,
	}
}

func MessagesToApi(messages []*domain.Message) []domain.MessagePayload {
	out := make([]domain.MessagePayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, domain.MessageToPayload(m))
	}
	return out
}
