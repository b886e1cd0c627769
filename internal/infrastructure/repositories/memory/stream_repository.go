package memory

import (
	"context"
	"fmt"
	"sync"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.RoomID]domain.StreamState
	nextID  uint64
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.RoomID]domain.StreamState),
	}
}

func (r *MemoryStreamRepository) GetByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.StreamState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.streams[roomID]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, domain.ErrStreamNotFound)
	}
	return &state, nil
}

// Save upserts by room id and assigns an id on first save.
func (r *MemoryStreamRepository) Save(ctx context.Context, state *domain.StreamState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.streams[state.RoomID]; ok {
		state.ID = existing.ID
	} else if state.ID == 0 {
		r.nextID++
		state.ID = r.nextID
	}
	r.streams[state.RoomID] = *state
	return nil
}
