package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/hub"
	"github.com/immxrtalbeast/supportchat/internal/presence"
	"github.com/immxrtalbeast/supportchat/internal/service"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

const codeRateLimited = "rate_limited"

// session binds one websocket connection to one hub endpoint. Only
// readPump touches rooms.
type session struct {
	ctrl     *Controller
	conn     *websocket.Conn
	endpoint *hub.Endpoint
	ctx      context.Context
	rooms    map[string]struct{}
	log      *slog.Logger
}

func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := s.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", sl.Err(err))
			}
			return
		}
		s.handle(in)
	}
}

// writePump drains the endpoint queue. It exits when the endpoint is closed,
// either by readPump or by the hub pruning a backlogged endpoint.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	events := s.endpoint.Events()
	for {
		select {
		case ev, ok := <-events:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				s.log.Debug("websocket write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(s.ctx, disconnectWait)
	defer cancel()

	s.ctrl.chat.Disconnect(ctx, s.endpoint)
	for roomID := range s.rooms {
		s.untrack(ctx, roomID)
	}
	s.endpoint.Close()
	_ = s.conn.Close()
	s.log.Debug("websocket disconnected")
}

func (s *session) handle(in Inbound) {
	ctx, cancel := context.WithTimeout(s.ctx, operationWait)
	defer cancel()

	var err error
	switch in.Type {
	case TypeJoin:
		var res *service.JoinResult
		res, err = s.ctrl.chat.JoinEndpoint(ctx, s.endpoint, in.identity())
		if err == nil {
			for roomID := range s.rooms {
				if roomID != res.Room.ID {
					s.untrack(ctx, roomID)
					delete(s.rooms, roomID)
				}
			}
			s.track(ctx, res.Room.ID)
		}
	case TypeJoinStaff:
		err = s.ctrl.chat.JoinStaff(ctx, s.endpoint)
	case TypeAdminJoinRoom:
		var room *domain.Room
		room, err = s.ctrl.chat.AdminJoinRoom(ctx, s.endpoint, in.RoomID)
		if err == nil {
			s.track(ctx, room.ID)
		}
	case TypeSendMessage:
		if !s.allow() {
			return
		}
		_, err = s.ctrl.chat.SendMessage(ctx, service.SendMessageInput{
			RoomID:  in.RoomID,
			Sender:  s.endpoint.Principal(),
			Body:    in.Body,
			IsStaff: in.IsStaff,
		})
	case TypeMarkRead:
		_, err = s.ctrl.chat.MarkRead(ctx, s.endpoint.Principal(), in.RoomID)
	case TypeSetStatus:
		_, err = s.ctrl.chat.SetRoomStatus(ctx, s.endpoint.Principal(), in.RoomID, in.Status)
	case TypeDeleteRoom:
		err = s.ctrl.chat.DeleteRoom(ctx, s.endpoint.Principal(), in.RoomID)
	case TypeLeave:
		s.ctrl.chat.LeaveRoom(s.endpoint, in.RoomID)
		if _, ok := s.rooms[in.RoomID]; ok {
			s.untrack(ctx, in.RoomID)
			delete(s.rooms, in.RoomID)
		}
	default:
		err = domain.ValidationError("unknown event type")
	}

	if err != nil {
		s.fail(in.Type, err)
	}
}

func (s *session) fail(eventType string, err error) {
	code := domain.ErrorCode(err)
	msg := err.Error()
	if code == domain.CodeInternal || code == domain.CodePersistence {
		s.log.Error("websocket operation failed", slog.String("type", eventType), sl.Err(err))
		msg = http.StatusText(http.StatusInternalServerError)
	}
	s.reply(domain.ErrorEvent(code, msg))
}

func (s *session) reply(ev domain.Event) {
	if err := s.endpoint.Send(ev); err != nil {
		s.log.Debug("failed to reply", slog.String("type", string(ev.Type)), sl.Err(err))
	}
}

func (s *session) allow() bool {
	if s.ctrl.limiter == nil {
		return true
	}
	key := s.endpoint.Principal().ID
	if key == "" {
		key = s.endpoint.ID
	}
	if s.ctrl.limiter.Allow(key) {
		return true
	}
	s.reply(domain.ErrorEvent(codeRateLimited, "too many messages"))
	return false
}

func (s *session) track(ctx context.Context, roomID string) {
	s.rooms[roomID] = struct{}{}
	if s.ctrl.presence == nil {
		return
	}
	p := s.endpoint.Principal()
	err := s.ctrl.presence.Add(ctx, roomID, presence.Entry{
		EndpointID:  s.endpoint.ID,
		PrincipalID: p.ID,
		Name:        p.Name,
		Role:        p.Role,
		Since:       time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("failed to record presence", slog.String("room_id", roomID), sl.Err(err))
	}
}

func (s *session) untrack(ctx context.Context, roomID string) {
	if s.ctrl.presence == nil {
		return
	}
	if err := s.ctrl.presence.Remove(ctx, roomID, s.endpoint.ID); err != nil {
		s.log.Warn("failed to clear presence", slog.String("room_id", roomID), sl.Err(err))
	}
}
