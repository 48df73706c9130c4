package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIDForIsStable(t *testing.T) {
	a := RoomIDFor("ana")
	assert.Equal(t, a, RoomIDFor("ana"))
	assert.NotEqual(t, a, RoomIDFor("bob"))
	assert.Len(t, a, roomIDLength)
	assert.True(t, IsRoomID(a))
	assert.False(t, IsRoomID("not-a-room"))
}

func TestVisitorIdentityNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      VisitorIdentity
		want    VisitorIdentity
		wantKey string
		wantErr bool
	}{
		{
			name:    "phone identified",
			in:      VisitorIdentity{Name: " Ana ", Contact: "5551111"},
			want:    VisitorIdentity{Name: "Ana", Contact: "5551111"},
			wantKey: "phone:5551111",
		},
		{
			name:    "anonymous username",
			in:      VisitorIdentity{Username: "guest42"},
			want:    VisitorIdentity{Name: "guest42", Username: "guest42"},
			wantKey: "user:guest42",
		},
		{
			name:    "name only",
			in:      VisitorIdentity{Name: "Bob"},
			want:    VisitorIdentity{Name: "Bob", Username: "Bob"},
			wantKey: "user:Bob",
		},
		{
			name:    "phone only",
			in:      VisitorIdentity{Contact: "5551111"},
			want:    VisitorIdentity{Contact: "5551111"},
			wantKey: "phone:5551111",
		},
		{name: "empty", in: VisitorIdentity{Name: "  "}, wantErr: true},
		{name: "invalid utf8", in: VisitorIdentity{Username: "gu\xffest"}, wantErr: true},
		{name: "too long", in: VisitorIdentity{Username: strings.Repeat("a", maxIdentityLength+1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantKey, got.Key())
			assert.Equal(t, tt.wantKey, NewVisitor(got).Key())
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ValidationError("empty"), CodeValidation},
		{ErrUnauthorized, CodeUnauthorized},
		{ErrRoomNotFound, CodeNotFound},
		{ErrRoomDeleted, CodeRoomDeleted},
		{ErrAlreadyDeleted, CodeAlreadyDeleted},
		{ErrInvalidStatus, CodeInvalidStatus},
		{ErrInvalidTransition, CodeInvalidTransition},
		{ErrPersistence, CodePersistence},
		{assert.AnError, CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestVisitorKeysDoNotCollideAcrossKinds(t *testing.T) {
	phone := VisitorIdentity{Contact: "5551111"}
	user := VisitorIdentity{Username: "5551111"}

	assert.NotEqual(t, phone.Key(), user.Key())
	assert.NotEqual(t, RoomIDFor(phone.Key()), RoomIDFor(user.Key()))
}

func TestVisitorMergeKeepsStoredFieldsOnBlankRejoin(t *testing.T) {
	stored := NewVisitor(VisitorIdentity{Name: "Ana", Contact: "5551111", Username: "ana"})
	later := stored.UpdatedAt.Add(time.Minute)

	stored.Merge(NewVisitor(VisitorIdentity{Contact: "5551111"}), later)

	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, "ana", stored.Username)
	assert.Equal(t, "5551111", stored.Contact)
	assert.Equal(t, later, stored.UpdatedAt)

	stored.Merge(NewVisitor(VisitorIdentity{Name: "Ana Maria", Contact: "5551111"}), later)
	assert.Equal(t, "Ana Maria", stored.Name)
}

func TestVisitorDisplayName(t *testing.T) {
	assert.Equal(t, "Ana", NewVisitor(VisitorIdentity{Name: "Ana", Contact: "1"}).DisplayName())
	assert.Equal(t, "guest", NewVisitor(VisitorIdentity{Username: "guest"}).DisplayName())
	assert.Equal(t, "5551111", NewVisitor(VisitorIdentity{Contact: "5551111"}).DisplayName())
}
