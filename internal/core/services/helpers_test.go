package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/distributed"
	"cinesync/internal/infrastructure/repositories/memory"
	"cinesync/pkg/logger"
)

type frame struct {
	roomID      domain.RoomID
	destination string
	body        string
}

// recordingRegistry stands in for the websocket registry.
type recordingRegistry struct {
	mu     sync.Mutex
	conns  map[domain.RoomID]map[string]ports.Conn
	frames []frame
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{conns: map[domain.RoomID]map[string]ports.Conn{}}
}

func (r *recordingRegistry) Register(roomID domain.RoomID, conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[roomID] == nil {
		r.conns[roomID] = map[string]ports.Conn{}
	}
	r.conns[roomID][conn.ID()] = conn
}

func (r *recordingRegistry) Unregister(roomID domain.RoomID, conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns[roomID], conn.ID())
}

func (r *recordingRegistry) Broadcast(roomID domain.RoomID, destination string, body []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{roomID, destination, string(body)})
	return len(r.conns[roomID])
}

func (r *recordingRegistry) Count(roomID domain.RoomID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[roomID])
}

func (r *recordingRegistry) sent(destination string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, f := range r.frames {
		if f.destination == destination {
			out = append(out, f.body)
		}
	}
	return out
}

type fakeConn struct{ id string }

func (c fakeConn) ID() string                { return c.id }
func (c fakeConn) Send(string, []byte) error { return nil }

type MockRoomEvents struct {
	mock.Mock
}

func (m *MockRoomEvents) RoomClosed(ctx context.Context, room domain.Room, by domain.UserID) {
	m.Called(ctx, room, by)
}

type MockHostResolver struct {
	mock.Mock
}

func (m *MockHostResolver) GetHostID(ctx context.Context, roomID domain.RoomID) (domain.UserID, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(domain.UserID), args.Error(1)
}

// relayHarness wires a relay to an in-process bus with its subscriber running.
type relayHarness struct {
	relay    RelayService
	registry *recordingRegistry
	history  *memory.MemoryHistoryStore
	bus      *distributed.MemoryBus
}

func newRelayHarness(t *testing.T) *relayHarness {
	t.Helper()
	h := &relayHarness{
		registry: newRecordingRegistry(),
		history:  memory.NewMemoryHistoryStore(),
		bus:      distributed.NewMemoryBus(),
	}
	h.relay = NewRelayService(h.bus, h.history, h.registry, nil, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return h.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	return h
}
