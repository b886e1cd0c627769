package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

type roomRecord struct {
	room         domain.Room
	participants map[domain.UserID]domain.Participant
	lock         chan struct{}
}

// MemoryRoomRepository keeps rooms in process. Each room carries a one-slot
// channel that stands in for the row lock.
type MemoryRoomRepository struct {
	mu          sync.RWMutex
	rooms       map[domain.RoomID]*roomRecord
	codes       map[domain.RoomCode]domain.RoomID
	nextID      domain.RoomID
	lockTimeout time.Duration
}

func NewMemoryRoomRepository(lockTimeout time.Duration) *MemoryRoomRepository {
	return &MemoryRoomRepository{
		rooms:       make(map[domain.RoomID]*roomRecord),
		codes:       make(map[domain.RoomCode]domain.RoomID),
		lockTimeout: lockTimeout,
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[room.Code]; taken {
		return fmt.Errorf("code %s: %w", room.Code, domain.ErrRoomCodeTaken)
	}

	r.nextID++
	room.ID = r.nextID
	rec := &roomRecord{
		room:         *room,
		participants: map[domain.UserID]domain.Participant{},
		lock:         make(chan struct{}, 1),
	}
	rec.participants[room.HostUserID] = domain.Participant{
		RoomID:   room.ID,
		UserID:   room.HostUserID,
		JoinedAt: room.CreatedAt,
	}
	r.rooms[room.ID] = rec
	r.codes[room.Code] = room.ID
	return nil
}

func (r *MemoryRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, domain.ErrRoomNotFound)
	}
	room := rec.room
	return &room, nil
}

func (r *MemoryRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	r.mu.RLock()
	id, ok := r.codes[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, domain.ErrRoomNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRoomRepository) CodeExists(ctx context.Context, code domain.RoomCode) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codes[code]
	return ok, nil
}

func (r *MemoryRoomRepository) CountParticipants(ctx context.Context, id domain.RoomID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rooms[id]
	if !ok {
		return 0, fmt.Errorf("room %d: %w", id, domain.ErrRoomNotFound)
	}
	return len(rec.participants), nil
}

func (r *MemoryRoomRepository) IsParticipant(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rooms[id]
	if !ok {
		return false, nil
	}
	_, joined := rec.participants[userID]
	return joined, nil
}

func (r *MemoryRoomRepository) ListPublic(ctx context.Context) ([]domain.RoomSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RoomSummary, 0, len(r.rooms))
	for _, rec := range r.rooms {
		if rec.room.IsPublic {
			out = append(out, domain.RoomSummary{Room: rec.room, ParticipantCount: len(rec.participants)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRoomRepository) WithRoomLock(ctx context.Context, id domain.RoomID, fn func(tx ports.RoomTx) error) error {
	r.mu.RLock()
	rec, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("room %d: %w", id, domain.ErrRoomNotFound)
	}

	timer := time.NewTimer(r.lockTimeout)
	defer timer.Stop()
	select {
	case rec.lock <- struct{}{}:
	case <-timer.C:
		return fmt.Errorf("room %d: %w", id, domain.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-rec.lock }()

	// The room may have been deleted while we waited.
	r.mu.RLock()
	current, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok || current != rec {
		return fmt.Errorf("room %d: %w", id, domain.ErrRoomNotFound)
	}

	tx := &memoryRoomTx{repo: r, rec: rec, room: rec.room}
	tx.participants = make(map[domain.UserID]domain.Participant, len(rec.participants))
	r.mu.RLock()
	for k, v := range rec.participants {
		tx.participants[k] = v
	}
	r.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *MemoryRoomRepository) Close() error { return nil }

func (r *MemoryRoomRepository) Ping(ctx context.Context) error { return nil }

// memoryRoomTx buffers writes and applies them on commit so a failing fn
// leaves the room untouched.
type memoryRoomTx struct {
	repo         *MemoryRoomRepository
	rec          *roomRecord
	room         domain.Room
	participants map[domain.UserID]domain.Participant
	deleted      bool
}

func (t *memoryRoomTx) Room() *domain.Room {
	room := t.room
	return &room
}

func (t *memoryRoomTx) CountParticipants(ctx context.Context) (int, error) {
	return len(t.participants), nil
}

func (t *memoryRoomTx) HasParticipant(ctx context.Context, userID domain.UserID) (bool, error) {
	_, ok := t.participants[userID]
	return ok, nil
}

func (t *memoryRoomTx) AddParticipant(ctx context.Context, p domain.Participant) error {
	if _, ok := t.participants[p.UserID]; ok {
		return fmt.Errorf("user %d: %w", p.UserID, domain.ErrAlreadyJoined)
	}
	t.participants[p.UserID] = p
	return nil
}

func (t *memoryRoomTx) RemoveParticipant(ctx context.Context, userID domain.UserID) error {
	delete(t.participants, userID)
	return nil
}

func (t *memoryRoomTx) DeleteRoom(ctx context.Context) error {
	t.deleted = true
	return nil
}

func (t *memoryRoomTx) commit() {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.deleted {
		delete(r.rooms, t.room.ID)
		delete(r.codes, t.room.Code)
		return
	}
	t.rec.participants = t.participants
}

var _ ports.RoomRepository = (*MemoryRoomRepository)(nil)
