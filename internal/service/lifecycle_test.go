package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/repository"
	"github.com/immxrtalbeast/supportchat/internal/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteLifecycle(t *testing.T) (*RoomLifecycle, repository.RoomRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	rooms := repository.NewGormRoomRepository(db)
	return NewRoomLifecycle(rooms, nil), rooms
}

func TestLifecycleOpenRaceOnSQLStore(t *testing.T) {
	lifecycle, _ := newSQLiteLifecycle(t)
	visitorID := uuid.New()
	roomID := domain.RoomIDFor("5553333")

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := lifecycle.Open(context.Background(), roomID, visitorID, nil)
			if !assert.NoError(t, err) {
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestLifecycleRecordMessageSequencesOnSQLStore(t *testing.T) {
	lifecycle, rooms := newSQLiteLifecycle(t)
	ctx := context.Background()
	visitor := domain.Principal{ID: uuid.NewString(), Name: "Ana", Role: domain.RoleVisitor}
	roomID := domain.RoomIDFor("ana")
	seed := domain.NewRoom(roomID, uuid.New())

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		observed []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := domain.NewMessage(visitor, fmt.Sprintf("m%d", i), nil)
			_, err := lifecycle.RecordMessage(ctx, roomID, seed, msg, visitor, func(_ *domain.Room, m *domain.Message) {
				observed = append(observed, m.Seq)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, n)
	assert.True(t, sort.SliceIsSorted(observed, func(i, j int) bool { return observed[i] < observed[j] }))

	room, err := rooms.GetByID(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, n, room.UnreadCount)
	assert.Equal(t, int64(n), room.LastSeq)

	messages, err := rooms.ListMessages(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, messages, n)
}

func TestLifecycleHooksOnlyRunAfterCommit(t *testing.T) {
	visitors := repository.NewInMemoryVisitorRepository()
	lifecycle := NewRoomLifecycle(repository.NewInMemoryRoomRepository(visitors), nil)
	ctx := context.Background()
	staffActor := domain.StaffPrincipal("s", "Staff")

	room, _, err := lifecycle.Open(ctx, "r1", uuid.New(), nil)
	require.NoError(t, err)

	calls := 0
	hook := func(*domain.Room) { calls++ }

	_, err = lifecycle.SoftDelete(ctx, staffActor, room.ID, hook)
	require.NoError(t, err)
	_, err = lifecycle.SoftDelete(ctx, staffActor, room.ID, hook)
	require.ErrorIs(t, err, domain.ErrAlreadyDeleted)
	_, err = lifecycle.SetStatus(ctx, staffActor, room.ID, domain.RoomStatusActive, hook)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, 1, calls)

	stored, err := lifecycle.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = lifecycle.SetPresence(ctx, room.ID, true)
	require.NoError(t, err)
	stored, err = lifecycle.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}
