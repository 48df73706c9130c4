package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stores struct {
	rooms    RoomRepository
	visitors VisitorRepository
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func eachStore(t *testing.T, fn func(t *testing.T, s stores)) {
	t.Run("memory", func(t *testing.T) {
		visitors := NewInMemoryVisitorRepository()
		fn(t, stores{rooms: NewInMemoryRoomRepository(visitors), visitors: visitors})
	})
	t.Run("gorm", func(t *testing.T) {
		db := newSQLiteDB(t)
		fn(t, stores{rooms: NewGormRoomRepository(db), visitors: NewGormVisitorRepository(db)})
	})
}

func visitorSender(v *domain.Visitor) domain.Principal {
	return domain.VisitorPrincipal(v)
}

func appendText(t *testing.T, s stores, room *domain.Room, sender domain.Principal, body string) *domain.Message {
	t.Helper()
	msg := domain.NewMessage(sender, body, nil)
	_, err := s.rooms.AppendMessage(context.Background(), room.ID, room, msg, func(r *domain.Room, m *domain.Message) error {
		return r.AcceptMessage(m, sender, m.CreatedAt)
	})
	require.NoError(t, err)
	return msg
}

func TestVisitorUpsertByNaturalKey(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		first, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Name: "Ana", Contact: "5551111"}))
		require.NoError(t, err)

		second, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Name: "Ana Maria", Contact: "5551111"}))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Ana Maria", second.Name)

		got, err := s.visitors.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "5551111", got.Contact)

		_, err = s.visitors.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		anon, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Name: "5551111", Username: "5551111"}))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, anon.ID)

		got, err = s.visitors.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", got.Name)
		assert.Equal(t, "5551111", got.Contact)
	})
}

func TestVisitorRejoinWithoutNameKeepsStoredName(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		first, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Name: "Ana", Contact: "5551111"}))
		require.NoError(t, err)

		rejoin, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Contact: "5551111"}))
		require.NoError(t, err)
		assert.Equal(t, first.ID, rejoin.ID)
		assert.Equal(t, "Ana", rejoin.Name)

		room := domain.NewRoom(domain.RoomIDFor(first.Key()), first.ID)
		_, _, err = s.rooms.Ensure(ctx, room)
		require.NoError(t, err)

		rooms, err := s.rooms.ListVisible(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, "Ana", rooms[0].VisitorName)
		assert.Equal(t, "5551111", rooms[0].VisitorContact)
	})
}

func TestVisitorWithOnlyPhoneIsNamedByIt(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		v, err := s.visitors.Upsert(context.Background(), domain.NewVisitor(domain.VisitorIdentity{Contact: "5553333"}))
		require.NoError(t, err)
		assert.Equal(t, "5553333", v.Name)
	})
}

func TestAppendMessageStampsStoreTime(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		visitor := domain.NewVisitor(domain.VisitorIdentity{Username: "clock"})
		seed := domain.NewRoom(domain.RoomIDFor(visitor.Key()), visitor.ID)
		sender := visitorSender(visitor)

		before := time.Now().UTC().Add(-time.Second)
		msg := domain.NewMessage(sender, "from the future", nil)
		msg.CreatedAt = time.Now().Add(24 * time.Hour)

		room, err := s.rooms.AppendMessage(context.Background(), seed.ID, seed, msg, func(r *domain.Room, m *domain.Message) error {
			return r.AcceptMessage(m, sender, m.CreatedAt)
		})
		require.NoError(t, err)

		assert.True(t, msg.CreatedAt.After(before))
		assert.True(t, msg.CreatedAt.Before(time.Now().Add(time.Second)))
		assert.WithinDuration(t, msg.CreatedAt, room.LastMessageAt, time.Millisecond)
	})
}

func TestRoomEnsureIsIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		visitorID := uuid.New()
		id := domain.RoomIDFor("guest")

		room, created, err := s.rooms.Ensure(ctx, domain.NewRoom(id, visitorID))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, domain.RoomStatusActive, room.Status)

		again, created, err := s.rooms.Ensure(ctx, domain.NewRoom(id, uuid.New()))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, visitorID, again.VisitorID)
	})
}

func TestAppendMessageCreatesRoomAndOrdersMessages(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		visitor := domain.NewVisitor(domain.VisitorIdentity{Name: "Ana", Username: "ana"})
		seed := domain.NewRoom(domain.RoomIDFor(visitor.Key()), visitor.ID)

		first := appendText(t, s, seed, visitorSender(visitor), "one")
		second := appendText(t, s, seed, visitorSender(visitor), "two")

		withFile := domain.NewMessage(visitorSender(visitor), "", &domain.Attachment{
			Path:     "/uploads/x_invoice.pdf",
			FileName: "invoice.pdf",
			Size:     42,
		})
		room, err := s.rooms.AppendMessage(ctx, seed.ID, nil, withFile, func(r *domain.Room, m *domain.Message) error {
			return r.AcceptMessage(m, visitorSender(visitor), m.CreatedAt)
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
		assert.Equal(t, int64(3), withFile.Seq)
		assert.Equal(t, 3, room.UnreadCount)
		assert.Equal(t, "invoice.pdf", room.LastSnippet)

		messages, err := s.rooms.ListMessages(ctx, seed.ID)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "one", messages[0].Body)
		assert.Equal(t, "two", messages[1].Body)
		require.NotNil(t, messages[2].Attachment)
		assert.Equal(t, "/uploads/x_invoice.pdf", messages[2].Attachment.Path)
		assert.Equal(t, withFile.ID, messages[2].Attachment.MessageID)
	})
}

func TestAppendMessageRejectedLeavesRoomUntouched(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		visitor := domain.NewVisitor(domain.VisitorIdentity{Username: "bob"})
		seed := domain.NewRoom(domain.RoomIDFor(visitor.Key()), visitor.ID)
		appendText(t, s, seed, visitorSender(visitor), "hello")

		deleted, err := s.rooms.Update(ctx, seed.ID, func(r *domain.Room) error { return r.SoftDelete() })
		require.NoError(t, err)

		msg := domain.NewMessage(visitorSender(visitor), "anyone?", nil)
		_, err = s.rooms.AppendMessage(ctx, seed.ID, seed, msg, func(r *domain.Room, m *domain.Message) error {
			return r.AcceptMessage(m, visitorSender(visitor), time.Now())
		})
		require.ErrorIs(t, err, domain.ErrRoomDeleted)

		after, err := s.rooms.GetByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, deleted.Version, after.Version)
		assert.Equal(t, deleted.LastSeq, after.LastSeq)

		messages, err := s.rooms.ListMessages(ctx, seed.ID)
		require.NoError(t, err)
		assert.Len(t, messages, 1)
	})
}

func TestAppendMessageWithoutSeed(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		msg := domain.NewMessage(domain.StaffPrincipal("s", "Staff"), "hi", nil)
		_, err := s.rooms.AppendMessage(context.Background(), "missing", nil, msg, func(r *domain.Room, m *domain.Message) error {
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRoomUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		room, _, err := s.rooms.Ensure(ctx, domain.NewRoom("r1", uuid.New()))
		require.NoError(t, err)

		closed, err := s.rooms.Update(ctx, room.ID, func(r *domain.Room) error {
			return r.SetStatus(domain.RoomStatusClosed)
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RoomStatusClosed, closed.Status)
		assert.Equal(t, room.Version+1, closed.Version)

		_, err = s.rooms.Update(ctx, room.ID, func(r *domain.Room) error {
			return r.SetStatus("archived")
		})
		require.ErrorIs(t, err, domain.ErrInvalidStatus)

		got, err := s.rooms.GetByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoomStatusClosed, got.Status)
		assert.Equal(t, closed.Version, got.Version)

		_, err = s.rooms.Update(ctx, "missing", func(r *domain.Room) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListVisible(t *testing.T) {
	eachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		ana, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Name: "Ana", Contact: "5551111"}))
		require.NoError(t, err)
		bob, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Username: "bob"}))
		require.NoError(t, err)
		eve, err := s.visitors.Upsert(ctx, domain.NewVisitor(domain.VisitorIdentity{Username: "eve"}))
		require.NoError(t, err)

		anaRoom := domain.NewRoom(domain.RoomIDFor(ana.Key()), ana.ID)
		bobRoom := domain.NewRoom(domain.RoomIDFor(bob.Key()), bob.ID)
		eveRoom := domain.NewRoom(domain.RoomIDFor(eve.Key()), eve.ID)

		appendText(t, s, anaRoom, visitorSender(ana), "first")
		time.Sleep(5 * time.Millisecond)
		appendText(t, s, bobRoom, visitorSender(bob), "second")
		appendText(t, s, eveRoom, visitorSender(eve), "gone")

		_, err = s.rooms.Update(ctx, bobRoom.ID, func(r *domain.Room) error {
			return r.SetStatus(domain.RoomStatusClosed)
		})
		require.NoError(t, err)
		_, err = s.rooms.Update(ctx, eveRoom.ID, func(r *domain.Room) error { return r.SoftDelete() })
		require.NoError(t, err)

		rooms, err := s.rooms.ListVisible(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)

		assert.Equal(t, bobRoom.ID, rooms[0].ID)
		assert.Equal(t, domain.RoomStatusClosed, rooms[0].Status)
		assert.Equal(t, "bob", rooms[0].VisitorName)

		assert.Equal(t, anaRoom.ID, rooms[1].ID)
		assert.Equal(t, "Ana", rooms[1].VisitorName)
		assert.Equal(t, "5551111", rooms[1].VisitorContact)
		assert.Equal(t, "first", rooms[1].LastSnippet)
		assert.True(t, rooms[1].Unread())
	})
}

func TestWrapStoreErr(t *testing.T) {
	err := wrapStoreErr("op", fmt.Errorf("connection refused"))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	err = wrapStoreErr("op", gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)

	err = wrapStoreErr("op", domain.ErrRoomDeleted)
	assert.ErrorIs(t, err, domain.ErrRoomDeleted)
	assert.NotErrorIs(t, err, domain.ErrPersistence)

	assert.NoError(t, wrapStoreErr("op", nil))
}
