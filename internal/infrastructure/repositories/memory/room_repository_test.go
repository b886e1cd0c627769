package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

func newRoom(code string, host domain.UserID, max *int) *domain.Room {
	return &domain.Room{
		Code:       domain.RoomCode(code),
		HostUserID: host,
		Name:       "Movie Night",
		IsPublic:   true,
		MaxUsers:   max,
		Active:     true,
		CreatedAt:  time.Now(),
	}
}

func TestMemoryRoomRepository_CreateAddsHost(t *testing.T) {
	repo := NewMemoryRoomRepository(time.Second)
	ctx := context.Background()

	room := newRoom("ABCD1234", 7, nil)
	require.NoError(t, repo.Create(ctx, room))
	assert.NotZero(t, room.ID)

	n, err := repo.CountParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := repo.IsParticipant(ctx, room.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	err = repo.Create(ctx, newRoom("ABCD1234", 8, nil))
	assert.True(t, errors.Is(err, domain.ErrRoomCodeTaken))
}

func TestMemoryRoomRepository_FailedTxRollsBack(t *testing.T) {
	repo := NewMemoryRoomRepository(time.Second)
	ctx := context.Background()
	room := newRoom("ROLLBACK", 1, nil)
	require.NoError(t, repo.Create(ctx, room))

	boom := errors.New("boom")
	err := repo.WithRoomLock(ctx, room.ID, func(tx ports.RoomTx) error {
		require.NoError(t, tx.AddParticipant(ctx, domain.Participant{RoomID: room.ID, UserID: 2}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, _ := repo.CountParticipants(ctx, room.ID)
	assert.Equal(t, 1, n)
}

func TestMemoryRoomRepository_LockTimeout(t *testing.T) {
	repo := NewMemoryRoomRepository(20 * time.Millisecond)
	ctx := context.Background()
	room := newRoom("LOCKED01", 1, nil)
	require.NoError(t, repo.Create(ctx, room))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = repo.WithRoomLock(ctx, room.ID, func(ports.RoomTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := repo.WithRoomLock(ctx, room.ID, func(ports.RoomTx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	close(release)
}

func TestMemoryRoomRepository_DeleteRemovesEverything(t *testing.T) {
	repo := NewMemoryRoomRepository(time.Second)
	ctx := context.Background()
	room := newRoom("DELETE01", 1, nil)
	require.NoError(t, repo.Create(ctx, room))

	require.NoError(t, repo.WithRoomLock(ctx, room.ID, func(tx ports.RoomTx) error {
		return tx.DeleteRoom(ctx)
	}))

	_, err := repo.GetByID(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	exists, _ := repo.CodeExists(ctx, room.Code)
	assert.False(t, exists)
	public, _ := repo.ListPublic(ctx)
	assert.Empty(t, public)

	err = repo.WithRoomLock(ctx, room.ID, func(ports.RoomTx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryRoomRepository_ConcurrentAdds(t *testing.T) {
	repo := NewMemoryRoomRepository(5 * time.Second)
	ctx := context.Background()
	max := 5
	room := newRoom("CAPACITY", 1, &max)
	require.NoError(t, repo.Create(ctx, room))

	var wg sync.WaitGroup
	for i := 2; i < 40; i++ {
		wg.Add(1)
		go func(uid domain.UserID) {
			defer wg.Done()
			_ = repo.WithRoomLock(ctx, room.ID, func(tx ports.RoomTx) error {
				n, _ := tx.CountParticipants(ctx)
				if !tx.Room().HasCapacityFor(n) {
					return domain.ErrRoomFull
				}
				return tx.AddParticipant(ctx, domain.Participant{RoomID: room.ID, UserID: uid})
			})
		}(domain.UserID(i))
	}
	wg.Wait()

	n, err := repo.CountParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, max, n)
}
