package model

import (
	"time"

	"github.com/google/uuid"
)

type Visitor struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	NaturalKey string    `gorm:"size:272;uniqueIndex;not null"`
	Name       string    `gorm:"size:255;not null"`
	Contact    *string   `gorm:"size:64;index"`
	Username   string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type Room struct {
	ID            string    `gorm:"size:32;primaryKey"`
	VisitorID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Status        string    `gorm:"size:16;index;not null"`
	IsActive      bool      `gorm:"not null"`
	UnreadCount   int       `gorm:"not null;default:0"`
	LastMessageAt time.Time `gorm:"index"`
	LastSnippet   string    `gorm:"size:512"`
	LastSeq       int64     `gorm:"not null;default:0"`
	Version       int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type Message struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey"`
	RoomID     string      `gorm:"size:32;not null;uniqueIndex:idx_messages_room_seq,priority:1"`
	Seq        int64       `gorm:"not null;uniqueIndex:idx_messages_room_seq,priority:2"`
	SenderID   string      `gorm:"size:64;not null"`
	SenderName string      `gorm:"size:255;not null"`
	SenderRole string      `gorm:"size:16;not null"`
	Body       string      `gorm:"type:text"`
	CreatedAt  time.Time   `gorm:"not null;index"`
	Attachment *Attachment `gorm:"constraint:OnDelete:CASCADE"`
}

type Attachment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Path        string    `gorm:"size:512;not null"`
	FileName    string    `gorm:"size:255;not null"`
	ContentType string    `gorm:"size:128"`
	Size        int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// All lists the models the schema is migrated from.
func All() []any {
	return []any{&Visitor{}, &Room{}, &Message{}, &Attachment{}}
}
