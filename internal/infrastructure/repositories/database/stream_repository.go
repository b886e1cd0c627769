package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cinesync/internal/core/domain"
)

type GormStreamRepository struct {
	db *gorm.DB
}

func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

func (r *GormStreamRepository) GetByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.StreamState, error) {
	var m StreamModel
	err := r.db.WithContext(ctx).First(&m, "room_id = ?", uint64(roomID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room %d: %w", roomID, domain.ErrStreamNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stream state: %w", err)
	}
	return m.toDomain(), nil
}

// Save upserts on room_id. The id is left to the database so the insert can
// only conflict on room_id.
func (r *GormStreamRepository) Save(ctx context.Context, state *domain.StreamState) error {
	m := toStreamModel(state)
	m.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"host_user_id", "media_type", "status", "media_source",
			"playback_time", "started_at", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to save stream state: %w", err)
	}
	if m.ID != 0 {
		state.ID = m.ID
	}
	return nil
}
