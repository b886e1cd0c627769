package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/pkg/tracing"
)

type GormRoomRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormRoomRepository(db *gorm.DB, lockTimeout time.Duration) *GormRoomRepository {
	return &GormRoomRepository{db: db, lockTimeout: lockTimeout}
}

func (r *GormRoomRepository) isPostgres() bool {
	return r.db.Dialector.Name() == "postgres"
}

func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "rooms")
	defer span.End()

	model := toRoomModel(room)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("code %s: %w", room.Code, domain.ErrRoomCodeTaken)
			}
			return err
		}
		host := &ParticipantModel{RoomID: model.ID, UserID: model.HostUserID, JoinedAt: model.CreatedAt}
		return tx.Create(host).Error
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to create room: %w", err)
	}
	room.ID = domain.RoomID(model.ID)
	return nil
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var m RoomModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", uint64(id)).Error; err != nil {
		return nil, fmt.Errorf("room %d: %w", id, mapError(err))
	}
	return m.toDomain(), nil
}

func (r *GormRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	var m RoomModel
	if err := r.db.WithContext(ctx).First(&m, "room_code = ?", string(code)).Error; err != nil {
		return nil, fmt.Errorf("room %s: %w", code, mapError(err))
	}
	return m.toDomain(), nil
}

func (r *GormRoomRepository) CodeExists(ctx context.Context, code domain.RoomCode) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&RoomModel{}).Where("room_code = ?", string(code)).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return n > 0, nil
}

func (r *GormRoomRepository) CountParticipants(ctx context.Context, id domain.RoomID) (int, error) {
	return countParticipants(r.db.WithContext(ctx), id)
}

func countParticipants(db *gorm.DB, id domain.RoomID) (int, error) {
	var n int64
	if err := db.Model(&ParticipantModel{}).Where("room_id = ?", uint64(id)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return int(n), nil
}

func (r *GormRoomRepository) IsParticipant(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error) {
	return hasParticipant(r.db.WithContext(ctx), id, userID)
}

func hasParticipant(db *gorm.DB, id domain.RoomID, userID domain.UserID) (bool, error) {
	var n int64
	err := db.Model(&ParticipantModel{}).
		Where("room_id = ? AND user_id = ?", uint64(id), int64(userID)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return n > 0, nil
}

type publicRoomRow struct {
	RoomModel        `gorm:"embedded"`
	ParticipantCount int
}

// ListPublic returns public rooms with their participant counts in one query.
func (r *GormRoomRepository) ListPublic(ctx context.Context) ([]domain.RoomSummary, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "rooms")
	defer span.End()

	var rows []publicRoomRow
	err := r.db.WithContext(ctx).
		Model(&RoomModel{}).
		Select("rooms.*, COUNT(room_participants.id) AS participant_count").
		Joins("LEFT JOIN room_participants ON room_participants.room_id = rooms.id").
		Where("rooms.is_public = ?", true).
		Group("rooms.id").
		Order("rooms.id").
		Scan(&rows).Error
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}

	out := make([]domain.RoomSummary, 0, len(rows))
	for i := range rows {
		out = append(out, domain.RoomSummary{
			Room:             *rows[i].RoomModel.toDomain(),
			ParticipantCount: rows[i].ParticipantCount,
		})
	}
	return out, nil
}

// WithRoomLock opens a transaction holding the room row lock. On postgres the
// wait is bounded by SET LOCAL lock_timeout; on sqlite the single connection
// serializes callers and the whole transaction is bounded by the same timeout.
func (r *GormRoomRepository) WithRoomLock(ctx context.Context, id domain.RoomID, fn func(tx ports.RoomTx) error) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "lock", "rooms")
	defer span.End()

	txCtx := ctx
	if !r.isPostgres() {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}

	err := r.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if r.isPostgres() {
			// SET does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var m RoomModel
		if err := query.First(&m, "id = ?", uint64(id)).Error; err != nil {
			return err
		}
		return fn(&gormRoomTx{tx: tx, room: m.toDomain()})
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		err = fmt.Errorf("room %d: %w", id, domain.ErrLockTimeout)
	default:
		err = mapError(err)
	}
	tracing.RecordError(ctx, err)
	return err
}

func (r *GormRoomRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *GormRoomRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// gormRoomTx only ever touches tx, never the pool, so it stays on the locked
// connection.
type gormRoomTx struct {
	tx   *gorm.DB
	room *domain.Room
}

func (t *gormRoomTx) Room() *domain.Room {
	room := *t.room
	return &room
}

func (t *gormRoomTx) CountParticipants(ctx context.Context) (int, error) {
	return countParticipants(t.tx, t.room.ID)
}

func (t *gormRoomTx) HasParticipant(ctx context.Context, userID domain.UserID) (bool, error) {
	return hasParticipant(t.tx, t.room.ID, userID)
}

func (t *gormRoomTx) AddParticipant(ctx context.Context, p domain.Participant) error {
	m := &ParticipantModel{RoomID: uint64(p.RoomID), UserID: int64(p.UserID), JoinedAt: p.JoinedAt}
	if err := t.tx.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user %d: %w", p.UserID, domain.ErrAlreadyJoined)
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (t *gormRoomTx) RemoveParticipant(ctx context.Context, userID domain.UserID) error {
	err := t.tx.Where("room_id = ? AND user_id = ?", uint64(t.room.ID), int64(userID)).
		Delete(&ParticipantModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

// DeleteRoom hard-deletes the room with its participants. The stream row is
// kept for history; the stream service marks it STOPPED.
func (t *gormRoomTx) DeleteRoom(ctx context.Context) error {
	id := uint64(t.room.ID)
	if err := t.tx.Where("room_id = ?", id).Delete(&ParticipantModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}
	if err := t.tx.Delete(&RoomModel{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

var _ ports.RoomRepository = (*GormRoomRepository)(nil)
