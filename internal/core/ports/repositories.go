package ports

import (
	"context"

	"cinesync/internal/core/domain"
)

// RoomRepository is the durable store for rooms and participants.
// Participant rows are only mutated through WithRoomLock.
type RoomRepository interface {
	// Create inserts the room and its host participant in one transaction.
	// Returns domain.ErrRoomCodeTaken when the code collides.
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	CodeExists(ctx context.Context, code domain.RoomCode) (bool, error)
	CountParticipants(ctx context.Context, id domain.RoomID) (int, error)
	IsParticipant(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error)
	ListPublic(ctx context.Context) ([]domain.RoomSummary, error)

	// WithRoomLock runs fn while holding an exclusive lock on the room row.
	// The wait for the lock is bounded; exceeding it yields domain.ErrLockTimeout.
	// fn's changes commit only if it returns nil.
	WithRoomLock(ctx context.Context, id domain.RoomID, fn func(tx RoomTx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// RoomTx is the lock-scoped view of one room.
type RoomTx interface {
	Room() *domain.Room
	CountParticipants(ctx context.Context) (int, error)
	HasParticipant(ctx context.Context, userID domain.UserID) (bool, error)
	AddParticipant(ctx context.Context, p domain.Participant) error
	RemoveParticipant(ctx context.Context, userID domain.UserID) error
	DeleteRoom(ctx context.Context) error
}

type StreamRepository interface {
	GetByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.StreamState, error)
	Save(ctx context.Context, state *domain.StreamState) error
}

// PresenceStore holds the live set of connected user ids per room.
type PresenceStore interface {
	Add(ctx context.Context, roomID domain.RoomID, userID string) error
	Remove(ctx context.Context, roomID domain.RoomID, userID string) error
	Members(ctx context.Context, roomID domain.RoomID) ([]string, error)
}

// HistoryStore keeps a bounded list of chat events per room, oldest first.
type HistoryStore interface {
	Append(ctx context.Context, event domain.ChatEvent, limit int) error
	List(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEvent, error)
}

// SnapshotStore holds the live stream snapshot per room. Save merges the
// non-empty fields of snap into the stored record.
type SnapshotStore interface {
	Save(ctx context.Context, roomID domain.RoomID, snap domain.Snapshot) error
	Get(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, bool, error)
	Delete(ctx context.Context, roomID domain.RoomID) error
}

// Locker serializes work on a key, across instances when backed by Redis.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
