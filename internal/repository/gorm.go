package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRoomRepository stores rooms and messages in any gorm dialect.
// Room writes are guarded by the version column.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) Ensure(ctx context.Context, room *domain.Room) (*domain.Room, bool, error) {
	const op = "repository.room.ensure"
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if room == nil {
		return nil, false, errors.New("room is nil")
	}

	var (
		stored  model.Room
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(toModelRoom(room))
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return tx.First(&stored, "id = ?", room.ID).Error
	})
	if err != nil {
		return nil, false, wrapStoreErr(op, err)
	}

	return toDomainRoom(&stored), created, nil
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	const op = "repository.room.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, wrapStoreErr(op, err)
	}

	return toDomainRoom(&room), nil
}

func (r *GormRoomRepository) Update(ctx context.Context, id string, apply RoomMutation) (*domain.Room, error) {
	const op = "repository.room.update"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *domain.Room
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		room, version, err := loadRoom(tx, id)
		if err != nil {
			return err
		}
		if err := apply(room); err != nil {
			return err
		}
		if err := saveRoom(tx, room, version); err != nil {
			return err
		}
		out = room
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return out, nil
}

func (r *GormRoomRepository) AppendMessage(ctx context.Context, roomID string, seed *domain.Room, msg *domain.Message, apply MessageMutation) (*domain.Room, error) {
	const op = "repository.room.appendMessage"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("message is nil")
	}

	var out *domain.Room
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		room, version, err := loadRoom(tx, roomID)
		if errors.Is(err, domain.ErrRoomNotFound) && seed != nil {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(toModelRoom(seed)).Error; err != nil {
				return err
			}
			room, version, err = loadRoom(tx, roomID)
		}
		if err != nil {
			return err
		}

		pending := *msg
		pending.CreatedAt, err = storeNow(tx)
		if err != nil {
			return err
		}
		if err := apply(room, &pending); err != nil {
			return err
		}
		if err := tx.Create(toModelMessage(&pending)).Error; err != nil {
			return err
		}
		if err := saveRoom(tx, room, version); err != nil {
			return err
		}

		*msg = pending
		out = room
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return out, nil
}

func (r *GormRoomRepository) ListVisible(ctx context.Context) ([]*domain.RoomSummary, error) {
	const op = "repository.room.listVisible"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)

	var rooms []model.Room
	err := db.Where("status <> ?", string(domain.RoomStatusDeleted)).
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	if len(rooms) == 0 {
		return []*domain.RoomSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rooms))
	for i := range rooms {
		ids = append(ids, rooms[i].VisitorID)
	}

	var visitors []model.Visitor
	if err := db.Where("id IN ?", ids).Find(&visitors).Error; err != nil {
		return nil, wrapStoreErr(op, err)
	}
	byID := make(map[uuid.UUID]*model.Visitor, len(visitors))
	for i := range visitors {
		byID[visitors[i].ID] = &visitors[i]
	}

	result := make([]*domain.RoomSummary, 0, len(rooms))
	for i := range rooms {
		summary := &domain.RoomSummary{Room: *toDomainRoom(&rooms[i])}
		if v, ok := byID[rooms[i].VisitorID]; ok {
			summary.VisitorName = v.Name
			if v.Contact != nil {
				summary.VisitorContact = *v.Contact
			}
		}
		result = append(result, summary)
	}
	return result, nil
}

func (r *GormRoomRepository) ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error) {
	const op = "repository.room.listMessages"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var messages []model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachment").
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}

	result := make([]*domain.Message, 0, len(messages))
	for i := range messages {
		result = append(result, toDomainMessage(&messages[i]))
	}
	return result, nil
}

// withRetry reruns fn in a fresh transaction when another writer bumped the
// room version first.
func (r *GormRoomRepository) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, errVersionConflict) {
			return err
		}
	}
	return err
}

// storeNow returns the postgres server clock, or the process clock for
// other dialects.
func storeNow(tx *gorm.DB) (time.Time, error) {
	if tx.Dialector.Name() != "postgres" {
		return nowUTC(), nil
	}
	var now time.Time
	if err := tx.Raw("SELECT clock_timestamp()").Row().Scan(&now); err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func loadRoom(tx *gorm.DB, id string) (*domain.Room, int64, error) {
	var room model.Room
	if err := tx.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, domain.ErrRoomNotFound
		}
		return nil, 0, err
	}
	return toDomainRoom(&room), room.Version, nil
}

func saveRoom(tx *gorm.DB, room *domain.Room, version int64) error {
	room.Version = version + 1
	res := tx.Model(&model.Room{}).
		Where("id = ? AND version = ?", room.ID, version).
		Updates(map[string]any{
			"status":          string(room.Status),
			"is_active":       room.IsActive,
			"unread_count":    room.UnreadCount,
			"last_message_at": room.LastMessageAt.UTC(),
			"last_snippet":    room.LastSnippet,
			"last_seq":        room.LastSeq,
			"version":         room.Version,
			"updated_at":      room.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	return nil
}

type GormVisitorRepository struct {
	db *gorm.DB
}

func NewGormVisitorRepository(db *gorm.DB) *GormVisitorRepository {
	return &GormVisitorRepository{db: db}
}

func (r *GormVisitorRepository) Upsert(ctx context.Context, visitor *domain.Visitor) (*domain.Visitor, error) {
	const op = "repository.visitor.upsert"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitor == nil {
		return nil, errors.New("visitor is nil")
	}

	visitorModel := toModelVisitor(visitor)
	visitorModel.UpdatedAt = time.Now().UTC()

	var out *domain.Visitor
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "natural_key"}},
			DoNothing: true,
		}).Create(visitorModel)
		if res.Error != nil {
			return res.Error
		}

		var stored model.Visitor
		if err := tx.First(&stored, "natural_key = ?", visitorModel.NaturalKey).Error; err != nil {
			return err
		}
		out = toDomainVisitor(&stored)
		if res.RowsAffected == 1 {
			return nil
		}

		out.Merge(visitor, visitorModel.UpdatedAt)
		updated := toModelVisitor(out)
		return tx.Model(&model.Visitor{}).Where("id = ?", out.ID).Updates(map[string]any{
			"name":       updated.Name,
			"contact":    updated.Contact,
			"username":   updated.Username,
			"updated_at": updated.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}

	return out, nil
}

func (r *GormVisitorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Visitor, error) {
	const op = "repository.visitor.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var visitor model.Visitor
	err := r.db.WithContext(ctx).First(&visitor, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVisitorNotFound
		}
		return nil, wrapStoreErr(op, err)
	}

	return toDomainVisitor(&visitor), nil
}
