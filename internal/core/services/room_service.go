package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/pkg/validation"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces candidate join codes.
type CodeGenerator func() string

// NewRoomCodeGenerator returns an 8-character uppercase alphanumeric generator.
func NewRoomCodeGenerator() (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(roomCodeAlphabet, domain.RoomCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to build room code generator: %w", err)
	}
	return CodeGenerator(gen), nil
}

type RoomServiceOptions struct {
	CodeAttempts int
	Codes        CodeGenerator
	Events       ports.RoomEvents
	Metrics      ports.MetricsRecorder
}

type roomService struct {
	rooms        ports.RoomRepository
	codes        CodeGenerator
	codeAttempts int
	events       ports.RoomEvents
	metrics      ports.MetricsRecorder
	publicGroup  singleflight.Group
	logger       *zap.SugaredLogger
}

func NewRoomService(rooms ports.RoomRepository, opts RoomServiceOptions, logger *zap.SugaredLogger) (ports.RoomService, error) {
	codes := opts.Codes
	if codes == nil {
		gen, err := NewRoomCodeGenerator()
		if err != nil {
			return nil, err
		}
		codes = gen
	}
	attempts := opts.CodeAttempts
	if attempts <= 0 {
		attempts = 10
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	s := &roomService{
		rooms:        rooms,
		codes:        codes,
		codeAttempts: attempts,
		events:       opts.Events,
		metrics:      metrics,
		logger:       logger,
	}
	return s, nil
}

func (s *roomService) CreateRoom(ctx context.Context, in ports.CreateRoomInput, hostID domain.UserID) (*domain.RoomSummary, error) {
	if hostID <= 0 {
		return nil, fmt.Errorf("host id %d: %w", hostID, domain.ErrInvalidInput)
	}
	if err := validation.ValidateRoomName(in.Name, domain.RoomNameMinLen, domain.RoomNameMaxLen); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	if err := validation.ValidateMaxUsers(in.MaxUsers, domain.RoomMinCapacity, domain.RoomMaxCapacity); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}

	var maxUsers *int
	if in.MaxUsers != nil {
		v := *in.MaxUsers
		maxUsers = &v
	}

	for attempt := 1; attempt <= s.codeAttempts; attempt++ {
		code := domain.RoomCode(s.codes())
		exists, err := s.rooms.CodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}
		if exists {
			continue
		}

		room := &domain.Room{
			Code:       code,
			HostUserID: hostID,
			Name:       in.Name,
			IsPublic:   in.IsPublic,
			MaxUsers:   maxUsers,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		err = s.rooms.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomCodeTaken) {
			// lost a race with a concurrent create
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}

		s.metrics.RoomCreated()
		s.logger.Infow("Room created",
			"room_id", room.ID,
			"room_code", room.Code,
			"user_id", hostID,
			"public", room.IsPublic,
		)
		return &domain.RoomSummary{Room: *room, ParticipantCount: 1}, nil
	}

	return nil, fmt.Errorf("no free room code after %d attempts", s.codeAttempts)
}

func (s *roomService) parseCode(code string) (domain.RoomCode, error) {
	normalized := domain.NormalizeRoomCode(code)
	if err := validation.ValidateRoomCode(string(normalized)); err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrInvalidRoomCode)
	}
	return normalized, nil
}

func (s *roomService) JoinRoom(ctx context.Context, code string, userID domain.UserID) (*domain.RoomSummary, error) {
	normalized, err := s.parseCode(code)
	if err != nil {
		s.metrics.JoinAttempt("invalid_code")
		return nil, err
	}

	room, err := s.rooms.GetByCode(ctx, normalized)
	if err != nil {
		s.metrics.JoinAttempt("not_found")
		return nil, err
	}

	var count int
	err = s.rooms.WithRoomLock(ctx, room.ID, func(tx ports.RoomTx) error {
		locked := tx.Room()
		current, err := tx.CountParticipants(ctx)
		if err != nil {
			return err
		}
		if !locked.HasCapacityFor(current) {
			return fmt.Errorf("room %s at %d/%d: %w", locked.Code, current, *locked.MaxUsers, domain.ErrRoomFull)
		}
		joined, err := tx.HasParticipant(ctx, userID)
		if err != nil {
			return err
		}
		if joined {
			return fmt.Errorf("user %d in room %s: %w", userID, locked.Code, domain.ErrAlreadyJoined)
		}
		if err := tx.AddParticipant(ctx, domain.Participant{
			RoomID:   locked.ID,
			UserID:   userID,
			JoinedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		count = current + 1
		*room = *locked
		return nil
	})
	if err != nil {
		s.metrics.JoinAttempt(joinResult(err))
		return nil, err
	}

	s.metrics.JoinAttempt("ok")
	s.logger.Infow("User joined room", "room_id", room.ID, "user_id", userID, "participants", count)
	return &domain.RoomSummary{Room: *room, ParticipantCount: count}, nil
}

func joinResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		return "full"
	case errors.Is(err, domain.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	}
	return "error"
}

func (s *roomService) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.LeaveResult, error) {
	var (
		result domain.LeaveResult
		closed domain.Room
	)

	err := s.rooms.WithRoomLock(ctx, roomID, func(tx ports.RoomTx) error {
		room := tx.Room()
		present, err := tx.HasParticipant(ctx, userID)
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		result.Left = true

		if room.IsHost(userID) {
			result.WasHost = true
			result.RoomDeleted = true
			closed = *room
			return tx.DeleteRoom(ctx)
		}

		if err := tx.RemoveParticipant(ctx, userID); err != nil {
			return err
		}
		remaining, err := tx.CountParticipants(ctx)
		if err != nil {
			return err
		}
		if remaining == 0 {
			result.RoomDeleted = true
			closed = *room
			return tx.DeleteRoom(ctx)
		}
		return nil
	})
	if err != nil {
		return domain.LeaveResult{}, err
	}

	if result.RoomDeleted {
		s.metrics.RoomClosed()
		s.logger.Infow("Room closed", "room_id", roomID, "user_id", userID, "host_left", result.WasHost)
		if s.events != nil {
			s.events.RoomClosed(ctx, closed, userID)
		}
	} else if result.Left {
		s.logger.Infow("User left room", "room_id", roomID, "user_id", userID)
	}
	return result, nil
}

func (s *roomService) LeaveRoomByCode(ctx context.Context, code string, userID domain.UserID) (domain.LeaveResult, error) {
	normalized, err := s.parseCode(code)
	if err != nil {
		return domain.LeaveResult{}, err
	}
	room, err := s.rooms.GetByCode(ctx, normalized)
	if err != nil {
		return domain.LeaveResult{}, err
	}
	return s.LeaveRoom(ctx, room.ID, userID)
}

// GetPublicRooms coalesces concurrent callers onto one aggregate query.
func (s *roomService) GetPublicRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	v, err, _ := s.publicGroup.Do("public", func() (interface{}, error) {
		return s.rooms.ListPublic(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}
	shared := v.([]domain.RoomSummary)
	out := make([]domain.RoomSummary, len(shared))
	copy(out, shared)
	return out, nil
}

func (s *roomService) GetRoomByCode(ctx context.Context, code string) (*domain.RoomSummary, error) {
	normalized, err := s.parseCode(code)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	count, err := s.rooms.CountParticipants(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	return &domain.RoomSummary{Room: *room, ParticipantCount: count}, nil
}

// GetHostID always reads the repository; host authority must reflect a
// room closed by any instance.
func (s *roomService) GetHostID(ctx context.Context, roomID domain.RoomID) (domain.UserID, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return room.HostUserID, nil
}

// RoomClosedListeners fans a room closure out to every listener in the order
// they were added. Listeners are added during wiring, before serving.
type RoomClosedListeners struct {
	listeners []ports.RoomEvents
}

func (l *RoomClosedListeners) Add(listener ports.RoomEvents) {
	l.listeners = append(l.listeners, listener)
}

func (l *RoomClosedListeners) RoomClosed(ctx context.Context, room domain.Room, by domain.UserID) {
	for _, listener := range l.listeners {
		listener.RoomClosed(ctx, room, by)
	}
}

func (s *roomService) IsParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	return s.rooms.IsParticipant(ctx, roomID, userID)
}
