package signal

import (
	"sync"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

// Registry maps rooms to the sockets held by this instance.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[string]ports.Conn
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]map[string]ports.Conn)}
}

func (r *Registry) Register(roomID domain.RoomID, conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[roomID]
	if !ok {
		conns = make(map[string]ports.Conn)
		r.rooms[roomID] = conns
	}
	conns[conn.ID()] = conn
}

func (r *Registry) Unregister(roomID domain.RoomID, conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(r.rooms, roomID)
	}
}

// UnregisterAll removes conn from every room and returns those rooms.
func (r *Registry) UnregisterAll(conn ports.Conn) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []domain.RoomID
	for roomID, conns := range r.rooms {
		if _, ok := conns[conn.ID()]; !ok {
			continue
		}
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(r.rooms, roomID)
		}
		left = append(left, roomID)
	}
	return left
}

// Broadcast sends outside the lock. Sockets that refuse the frame are skipped.
func (r *Registry) Broadcast(roomID domain.RoomID, destination string, body []byte) int {
	r.mu.RLock()
	targets := make([]ports.Conn, 0, len(r.rooms[roomID]))
	for _, c := range r.rooms[roomID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(destination, body); err == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) Count(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Rooms returns how many rooms have at least one local socket.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

var _ ports.ConnectionRegistry = (*Registry)(nil)
