package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/repositories/memory"
	"cinesync/pkg/distributed"
	"cinesync/pkg/logger"
)

type MockStreamEvents struct {
	mock.Mock
}

func (m *MockStreamEvents) StreamChanged(ctx context.Context, roomID domain.RoomID, by domain.UserID, snap domain.Snapshot) {
	m.Called(ctx, roomID, by, snap)
}

func newStreamService(t *testing.T, host domain.UserID) (StreamService, *MockHostResolver, *MockStreamEvents) {
	t.Helper()
	hosts := &MockHostResolver{}
	hosts.On("GetHostID", mock.Anything, domain.RoomID(1)).Return(host, nil)
	hosts.On("GetHostID", mock.Anything, domain.RoomID(404)).Return(domain.UserID(0), domain.ErrRoomNotFound)

	events := &MockStreamEvents{}
	events.On("StreamChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	svc := NewStreamService(hosts, memory.NewMemoryStreamRepository(), memory.NewMemorySnapshotStore(),
		StreamServiceOptions{Locker: distributed.NewKeyedMutex(time.Second), Events: events},
		logger.NewNop())
	return svc, hosts, events
}

func TestStreamService_Lifecycle(t *testing.T) {
	svc, _, events := newStreamService(t, 10)
	ctx := context.Background()

	state, err := svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StoppedSnapshot(), state)

	snap, err := svc.Start(ctx, 1, 10, "mp4", "https://cdn.example/movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStarted, snap.Status)
	assert.Equal(t, 0.0, *snap.Time)

	state, err = svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, snap, state)

	snap, err = svc.Pause(ctx, 1, 10, 42.5)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamPaused, snap.Status)

	state, err = svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamPaused, state.Status)
	assert.Equal(t, 42.5, *state.Time)
	assert.Equal(t, "https://cdn.example/movie.mp4", state.Media)

	snap, err = svc.Resume(ctx, 1, 10, 40)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStarted, snap.Status)
	assert.Equal(t, 40.0, *snap.Time)

	snap, err = svc.Stop(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.StoppedSnapshot(), snap)

	state, err = svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StoppedSnapshot(), state)

	events.AssertNumberOfCalls(t, "StreamChanged", 4)
}

func TestStreamService_HostOnly(t *testing.T) {
	svc, _, events := newStreamService(t, 10)
	ctx := context.Background()

	_, err := svc.Start(ctx, 1, 11, domain.MediaScreen, "screen")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedRoomAction)

	_, err = svc.Start(ctx, 404, 10, domain.MediaScreen, "screen")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = svc.Start(ctx, 1, 10, domain.MediaScreen, "screen")
	require.NoError(t, err)

	_, err = svc.Pause(ctx, 1, 11, 3)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedRoomAction)
	_, err = svc.Stop(ctx, 1, 11)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedRoomAction)

	state, err := svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStarted, state.Status)
	events.AssertNumberOfCalls(t, "StreamChanged", 1)
}

func TestStreamService_InvalidRequests(t *testing.T) {
	svc, _, _ := newStreamService(t, 10)
	ctx := context.Background()

	_, err := svc.Pause(ctx, 1, 10, 5)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	_, err = svc.Stop(ctx, 1, 10)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)

	_, err = svc.Start(ctx, 1, 10, "VHS", "tape")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Start(ctx, 1, 10, domain.MediaMP4, "https://cdn.example/a.mp4")
	require.NoError(t, err)

	_, err = svc.Pause(ctx, 1, 10, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Pause(ctx, 1, 10, math.NaN())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Stop(ctx, 1, 10)
	require.NoError(t, err)
	_, err = svc.Pause(ctx, 1, 10, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidStreamTransition)
	_, err = svc.Resume(ctx, 1, 10, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidStreamTransition)

	// a new Start after Stop begins a fresh episode
	snap, err := svc.Start(ctx, 1, 10, domain.MediaMP4, "https://cdn.example/b.mp4")
	require.NoError(t, err)
	assert.Equal(t, 0.0, *snap.Time)
	assert.Equal(t, "https://cdn.example/b.mp4", snap.Media)
}

// Two instances share one room repository, as they share the database.
func TestStreamService_RoomClosedByAnotherInstance(t *testing.T) {
	repo := memory.NewMemoryRoomRepository(2 * time.Second)
	streamRepo := memory.NewMemoryStreamRepository()
	snapshots := memory.NewMemorySnapshotStore()
	ctx := context.Background()

	roomsA, err := NewRoomService(repo, RoomServiceOptions{}, logger.NewNop())
	require.NoError(t, err)
	roomsB, err := NewRoomService(repo, RoomServiceOptions{}, logger.NewNop())
	require.NoError(t, err)
	streamsA := NewStreamService(roomsA, streamRepo, snapshots,
		StreamServiceOptions{Locker: distributed.NewKeyedMutex(time.Second)}, logger.NewNop())

	room, err := roomsA.CreateRoom(ctx, ports.CreateRoomInput{Name: "Two Pods"}, 1)
	require.NoError(t, err)
	_, err = streamsA.Start(ctx, room.ID, 1, domain.MediaMP4, "x.mp4")
	require.NoError(t, err)

	_, err = roomsB.LeaveRoom(ctx, room.ID, 1)
	require.NoError(t, err)

	_, err = streamsA.Pause(ctx, room.ID, 1, 10)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = streamsA.Start(ctx, room.ID, 1, domain.MediaMP4, "y.mp4")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = streamsA.Stop(ctx, room.ID, 1)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStreamService_HostLeaveClearsLiveState(t *testing.T) {
	repo := memory.NewMemoryRoomRepository(2 * time.Second)
	streamRepo := memory.NewMemoryStreamRepository()
	ctx := context.Background()

	relay := &MockRoomEvents{}
	relay.On("RoomClosed", mock.Anything, mock.Anything, domain.UserID(1)).Once()

	closed := &RoomClosedListeners{}
	closed.Add(relay)
	rooms, err := NewRoomService(repo, RoomServiceOptions{Events: closed}, logger.NewNop())
	require.NoError(t, err)
	streams := NewStreamService(rooms, streamRepo, memory.NewMemorySnapshotStore(),
		StreamServiceOptions{Locker: distributed.NewKeyedMutex(time.Second)}, logger.NewNop())
	closed.Add(streams)

	room, err := rooms.CreateRoom(ctx, ports.CreateRoomInput{Name: "Movie Night"}, 1)
	require.NoError(t, err)
	_, err = rooms.JoinRoom(ctx, string(room.Code), 2)
	require.NoError(t, err)
	_, err = streams.Start(ctx, room.ID, 1, domain.MediaMP4, "x.mp4")
	require.NoError(t, err)
	_, err = streams.Pause(ctx, room.ID, 1, 12)
	require.NoError(t, err)

	res, err := rooms.LeaveRoom(ctx, room.ID, 1)
	require.NoError(t, err)
	require.True(t, res.RoomDeleted)

	snap, err := streams.GetState(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StoppedSnapshot(), snap)

	state, err := streamRepo.GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStopped, state.Status)
	assert.Equal(t, 12.0, state.PlaybackTime)

	relay.AssertExpectations(t)
}

func TestStreamService_RoomClosedWithoutStream(t *testing.T) {
	svc, _, _ := newStreamService(t, 10)
	ctx := context.Background()

	svc.RoomClosed(ctx, domain.Room{ID: 1}, 10)

	state, err := svc.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StoppedSnapshot(), state)
}
