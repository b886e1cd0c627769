package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/pkg/validation"
)

type streamService struct {
	hosts     ports.HostResolver
	streams   ports.StreamRepository
	snapshots ports.SnapshotStore
	locker    ports.Locker
	events    ports.StreamEvents
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// StreamService drives playback state and clears it when its room closes.
type StreamService interface {
	ports.StreamService
	ports.RoomEvents
}

type StreamServiceOptions struct {
	// Locker serializes transitions per room. Nil runs them unserialized.
	Locker  ports.Locker
	Events  ports.StreamEvents
	Metrics ports.MetricsRecorder
}

func NewStreamService(
	hosts ports.HostResolver,
	streams ports.StreamRepository,
	snapshots ports.SnapshotStore,
	opts StreamServiceOptions,
	logger *zap.SugaredLogger,
) StreamService {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &streamService{
		hosts:     hosts,
		streams:   streams,
		snapshots: snapshots,
		locker:    opts.Locker,
		events:    opts.Events,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *streamService) authorize(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	hostID, err := s.hosts.GetHostID(ctx, roomID)
	if err != nil {
		return err
	}
	if hostID != userID {
		return fmt.Errorf("user %d on room %d: %w", userID, roomID, domain.ErrUnauthorizedRoomAction)
	}
	return nil
}

func streamLockKey(roomID domain.RoomID) string {
	return "stream:" + roomID.String()
}

// lock takes the room's stream lock. The returned func is never nil.
func (s *streamService) lock(ctx context.Context, roomID domain.RoomID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, streamLockKey(roomID))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("stream of room %d: %v: %w", roomID, err, domain.ErrLockTimeout)
	}
	return unlock, nil
}

// transition runs mutate on the room's durable state under the room's stream
// lock, persists it and refreshes the live snapshot. Host authority is checked
// under the lock so a transition never lands after the room's closure cleanup.
func (s *streamService) transition(
	ctx context.Context,
	roomID domain.RoomID,
	userID domain.UserID,
	create bool,
	mutate func(state *domain.StreamState) error,
	publish func(state *domain.StreamState) error,
) (domain.Snapshot, error) {
	unlock, err := s.lock(ctx, roomID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer unlock()

	if err := s.authorize(ctx, roomID, userID); err != nil {
		return domain.Snapshot{}, err
	}

	state, err := s.streams.GetByRoomID(ctx, roomID)
	switch {
	case errors.Is(err, domain.ErrStreamNotFound) && create:
		state = domain.NewStreamState(roomID, userID)
	case err != nil:
		return domain.Snapshot{}, err
	}

	if err := mutate(state); err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.streams.Save(ctx, state); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to persist stream state: %w", err)
	}
	if err := publish(state); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to update stream snapshot: %w", err)
	}

	snap := state.Snapshot()
	if state.Status == domain.StreamStopped {
		snap = domain.StoppedSnapshot()
	}

	s.metrics.StreamTransition(state.Status)
	s.logger.Infow("Stream transition",
		"room_id", roomID,
		"user_id", userID,
		"status", state.Status,
		"time", state.PlaybackTime,
	)
	if s.events != nil {
		s.events.StreamChanged(ctx, roomID, userID, snap)
	}
	return snap, nil
}

func (s *streamService) Start(ctx context.Context, roomID domain.RoomID, userID domain.UserID, mediaType domain.MediaType, source string) (domain.Snapshot, error) {
	media, err := domain.ParseMediaType(string(mediaType))
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := validation.ValidateMediaSource(source); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}

	return s.transition(ctx, roomID, userID, true,
		func(state *domain.StreamState) error {
			state.HostUserID = userID
			state.Start(media, source, s.now())
			return nil
		},
		func(state *domain.StreamState) error {
			return s.snapshots.Save(ctx, roomID, state.Snapshot())
		},
	)
}

func (s *streamService) Pause(ctx context.Context, roomID domain.RoomID, userID domain.UserID, position float64) (domain.Snapshot, error) {
	return s.transition(ctx, roomID, userID, false,
		func(state *domain.StreamState) error {
			return state.Pause(position, s.now())
		},
		func(state *domain.StreamState) error {
			t := state.PlaybackTime
			return s.snapshots.Save(ctx, roomID, domain.Snapshot{Status: state.Status, Time: &t})
		},
	)
}

func (s *streamService) Resume(ctx context.Context, roomID domain.RoomID, userID domain.UserID, position float64) (domain.Snapshot, error) {
	return s.transition(ctx, roomID, userID, false,
		func(state *domain.StreamState) error {
			return state.Resume(position, s.now())
		},
		func(state *domain.StreamState) error {
			t := state.PlaybackTime
			return s.snapshots.Save(ctx, roomID, domain.Snapshot{Status: state.Status, Time: &t})
		},
	)
}

func (s *streamService) Stop(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Snapshot, error) {
	return s.transition(ctx, roomID, userID, false,
		func(state *domain.StreamState) error {
			state.Stop(s.now())
			return nil
		},
		func(*domain.StreamState) error {
			return s.snapshots.Delete(ctx, roomID)
		},
	)
}

// GetState returns the live snapshot. A room with no snapshot reads as STOPPED.
func (s *streamService) GetState(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, error) {
	snap, ok, err := s.snapshots.Get(ctx, roomID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read stream snapshot: %w", err)
	}
	if !ok {
		return domain.StoppedSnapshot(), nil
	}
	return snap, nil
}

// RoomClosed stops the closed room's stream and drops its live snapshot. The
// durable record stays behind as STOPPED.
func (s *streamService) RoomClosed(ctx context.Context, room domain.Room, _ domain.UserID) {
	unlock, err := s.lock(ctx, room.ID)
	if err != nil {
		s.logger.Warnw("Clearing stream without lock", "room_id", room.ID, "error", err)
		unlock = func() {}
	}
	defer unlock()

	state, err := s.streams.GetByRoomID(ctx, room.ID)
	switch {
	case errors.Is(err, domain.ErrStreamNotFound):
	case err != nil:
		s.logger.Errorw("Failed to load stream of closed room", "room_id", room.ID, "error", err)
	case state.Status != domain.StreamStopped:
		state.Stop(s.now())
		if err := s.streams.Save(ctx, state); err != nil {
			s.logger.Errorw("Failed to stop stream of closed room", "room_id", room.ID, "error", err)
			break
		}
		s.metrics.StreamTransition(domain.StreamStopped)
		s.logger.Infow("Stream stopped with its room", "room_id", room.ID)
	}

	if err := s.snapshots.Delete(ctx, room.ID); err != nil {
		s.logger.Errorw("Failed to drop stream snapshot", "room_id", room.ID, "error", err)
	}
}
