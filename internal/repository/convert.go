package repository

import (
	"time"

	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/repository/model"
)

func toModelVisitor(v *domain.Visitor) *model.Visitor {
	var contact *string
	if v.Contact != "" {
		c := v.Contact
		contact = &c
	}
	return &model.Visitor{
		ID:         v.ID,
		NaturalKey: v.Key(),
		Name:       v.DisplayName(),
		Contact:    contact,
		Username:   v.Username,
		CreatedAt:  v.CreatedAt.UTC(),
		UpdatedAt:  v.UpdatedAt.UTC(),
	}
}

func toDomainVisitor(v *model.Visitor) *domain.Visitor {
	contact := ""
	if v.Contact != nil {
		contact = *v.Contact
	}
	return &domain.Visitor{
		ID:        v.ID,
		Name:      v.Name,
		Contact:   contact,
		Username:  v.Username,
		CreatedAt: v.CreatedAt.UTC(),
		UpdatedAt: v.UpdatedAt.UTC(),
	}
}

func toModelRoom(r *domain.Room) *model.Room {
	return &model.Room{
		ID:            r.ID,
		VisitorID:     r.VisitorID,
		Status:        string(r.Status),
		IsActive:      r.IsActive,
		UnreadCount:   r.UnreadCount,
		LastMessageAt: r.LastMessageAt.UTC(),
		LastSnippet:   r.LastSnippet,
		LastSeq:       r.LastSeq,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func toDomainRoom(r *model.Room) *domain.Room {
	return &domain.Room{
		ID:            r.ID,
		VisitorID:     r.VisitorID,
		Status:        domain.RoomStatus(r.Status),
		IsActive:      r.IsActive,
		UnreadCount:   r.UnreadCount,
		LastMessageAt: r.LastMessageAt.UTC(),
		LastSnippet:   r.LastSnippet,
		LastSeq:       r.LastSeq,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func toModelMessage(m *domain.Message) *model.Message {
	msg := &model.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: string(m.SenderRole),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if a := m.Attachment; a != nil {
		msg.Attachment = &model.Attachment{
			ID:          a.ID,
			MessageID:   m.ID,
			Path:        a.Path,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
			CreatedAt:   m.CreatedAt.UTC(),
		}
	}
	return msg
}

func toDomainMessage(m *model.Message) *domain.Message {
	msg := &domain.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: domain.Role(m.SenderRole),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if a := m.Attachment; a != nil {
		msg.Attachment = &domain.Attachment{
			ID:          a.ID,
			MessageID:   a.MessageID,
			Path:        a.Path,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
		}
	}
	return msg
}

func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	return &c
}

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	if m.Attachment != nil {
		a := *m.Attachment
		c.Attachment = &a
	}
	return &c
}

func cloneVisitor(v *domain.Visitor) *domain.Visitor {
	c := *v
	return &c
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
