package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxIdentityLength = 255

// Visitor is a site visitor who opens support conversations.
// Contact is the phone number when the visitor left one.
type Visitor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VisitorIdentity is what a visitor presents when joining.
type VisitorIdentity struct {
	Name     string
	Contact  string
	Username string
}

func NewVisitor(identity VisitorIdentity) *Visitor {
	now := time.Now().UTC()
	return &Visitor{
		ID:        uuid.New(),
		Name:      identity.Name,
		Contact:   identity.Contact,
		Username:  identity.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Natural key prefixes keep phone numbers and usernames in separate spaces.
const (
	phoneKeyPrefix    = "phone:"
	usernameKeyPrefix = "user:"
)

// Key is the natural key visitors are upserted by.
func (v *Visitor) Key() string {
	return visitorKey(v.Contact, v.Username)
}

// DisplayName is the name staff see, falling back to whatever identifies
// the visitor.
func (v *Visitor) DisplayName() string {
	switch {
	case v.Name != "":
		return v.Name
	case v.Username != "":
		return v.Username
	default:
		return v.Contact
	}
}

// Merge applies a re-join onto the stored visitor. Blank fields keep the
// stored value.
func (v *Visitor) Merge(incoming *Visitor, now time.Time) {
	if incoming.Name != "" {
		v.Name = incoming.Name
	}
	if incoming.Contact != "" {
		v.Contact = incoming.Contact
	}
	if incoming.Username != "" {
		v.Username = incoming.Username
	}
	v.UpdatedAt = now
}

func visitorKey(contact, username string) string {
	if contact != "" {
		return phoneKeyPrefix + contact
	}
	return usernameKeyPrefix + username
}

// Normalize trims the identity. Anonymous visitors get username and name
// from each other; a phone-identified visitor may leave the name blank.
func (i VisitorIdentity) Normalize() (VisitorIdentity, error) {
	out := VisitorIdentity{
		Name:     strings.TrimSpace(i.Name),
		Contact:  strings.TrimSpace(i.Contact),
		Username: strings.TrimSpace(i.Username),
	}
	if out.Username == "" && out.Contact == "" {
		out.Username = out.Name
	}
	if out.Name == "" {
		out.Name = out.Username
	}
	if out.Username == "" && out.Contact == "" {
		return out, wrapValidation("name, username or contact is required")
	}
	for _, field := range []string{out.Name, out.Contact, out.Username} {
		if !utf8.ValidString(field) {
			return out, wrapValidation("identity is not valid UTF-8")
		}
		if utf8.RuneCountInString(field) > maxIdentityLength {
			return out, wrapValidation("identity field is too long")
		}
	}
	return out, nil
}

// Key mirrors Visitor.Key for an identity that has not been stored yet.
func (i VisitorIdentity) Key() string {
	return visitorKey(i.Contact, i.Username)
}
