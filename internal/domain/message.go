package domain

import (
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxMessageLength = 4000

// Message is an immutable chat utterance. Seq and CreatedAt are assigned
// when the owning room accepts it.
type Message struct {
	ID         uuid.UUID
	RoomID     string
	Seq        int64
	SenderID   string
	SenderName string
	SenderRole Role
	Body       string
	Attachment *Attachment
	CreatedAt  time.Time
}

// Attachment is a stored file sent along with a message.
type Attachment struct {
	ID          uuid.UUID
	MessageID   uuid.UUID
	Path        string
	FileName    string
	ContentType string
	Size        int64
}

// Upload is a file received from a client that has not been stored yet.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

func NewMessage(sender Principal, body string, attachment *Attachment) *Message {
	msg := &Message{
		ID:         uuid.New(),
		SenderID:   sender.ID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Body:       body,
	}
	if attachment != nil {
		if attachment.ID == uuid.Nil {
			attachment.ID = uuid.New()
		}
		attachment.MessageID = msg.ID
		msg.Attachment = attachment
	}
	return msg
}

// Snippet is the short preview shown in room listings.
func (m *Message) Snippet() string {
	if m.Body == "" && m.Attachment != nil {
		return snippet(m.Attachment.FileName)
	}
	return snippet(m.Body)
}

// NormalizeBody trims the body and enforces the length limit. An empty body is
// allowed only when a file accompanies the message.
func NormalizeBody(body string, hasAttachment bool, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	if !utf8.ValidString(body) {
		return "", wrapValidation("message body is not valid UTF-8")
	}
	body = strings.TrimSpace(body)
	if body == "" && !hasAttachment {
		return "", wrapValidation("message body cannot be empty")
	}
	if utf8.RuneCountInString(body) > maxLength {
		return "", wrapValidation("message body is too long")
	}
	return body, nil
}
