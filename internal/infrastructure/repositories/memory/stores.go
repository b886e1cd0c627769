package memory

import (
	"context"
	"sort"
	"sync"

	"cinesync/internal/core/domain"
)

// MemoryPresenceStore is the single-instance stand-in for the Redis sets.
type MemoryPresenceStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[string]struct{}
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{rooms: make(map[domain.RoomID]map[string]struct{})}
}

func (s *MemoryPresenceStore) Add(ctx context.Context, roomID domain.RoomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.rooms[roomID]
	if !ok {
		set = make(map[string]struct{})
		s.rooms[roomID] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (s *MemoryPresenceStore) Remove(ctx context.Context, roomID domain.RoomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.rooms[roomID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(s.rooms, roomID)
		}
	}
	return nil
}

func (s *MemoryPresenceStore) Members(ctx context.Context, roomID domain.RoomID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.rooms[roomID]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

type MemoryHistoryStore struct {
	mu     sync.RWMutex
	events map[domain.RoomID][]domain.ChatEvent
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{events: make(map[domain.RoomID][]domain.ChatEvent)}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, event domain.ChatEvent, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.events[event.RoomID], event)
	if limit > 0 && len(list) > limit {
		list = append([]domain.ChatEvent(nil), list[len(list)-limit:]...)
	}
	s.events[event.RoomID] = list
	return nil
}

func (s *MemoryHistoryStore) List(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[roomID]
	out := make([]domain.ChatEvent, len(list))
	copy(out, list)
	return out, nil
}

type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[domain.RoomID]domain.Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[domain.RoomID]domain.Snapshot)}
}

// Save merges like HSET: empty fields leave the stored value alone.
func (s *MemorySnapshotStore) Save(ctx context.Context, roomID domain.RoomID, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snaps[roomID]
	if snap.Status != "" {
		cur.Status = snap.Status
	}
	if snap.Media != "" {
		cur.Media = snap.Media
	}
	if snap.Time != nil {
		t := *snap.Time
		cur.Time = &t
	}
	s.snaps[roomID] = cur
	return nil
}

func (s *MemorySnapshotStore) Get(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[roomID]
	return snap, ok, nil
}

func (s *MemorySnapshotStore) Delete(ctx context.Context, roomID domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, roomID)
	return nil
}
