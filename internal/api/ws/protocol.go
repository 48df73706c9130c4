package ws

import "github.com/immxrtalbeast/supportchat/internal/domain"

// Inbound event types accepted from clients.
const (
	TypeJoin          = "join"
	TypeJoinStaff     = "join_staff"
	TypeAdminJoinRoom = "admin_join_room"
	TypeSendMessage   = "send_message"
	TypeMarkRead      = "mark_read"
	TypeSetStatus     = "set_status"
	TypeDeleteRoom    = "delete_room"
	TypeLeave         = "leave"
)

// Inbound is the tagged envelope every client frame decodes into. Fields
// that do not apply to Type are ignored.
type Inbound struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Contact  string `json:"contact,omitempty"`
	Username string `json:"username,omitempty"`
	Body     string `json:"body,omitempty"`
	IsStaff  bool   `json:"is_staff,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (in Inbound) identity() domain.VisitorIdentity {
	return domain.VisitorIdentity{Name: in.Name, Contact: in.Contact, Username: in.Username}
}
