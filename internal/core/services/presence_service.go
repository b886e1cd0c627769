package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

type presenceService struct {
	store    ports.PresenceStore
	registry ports.ConnectionRegistry
	relay    ports.RelayService
	logger   *zap.SugaredLogger
}

func NewPresenceService(
	store ports.PresenceStore,
	registry ports.ConnectionRegistry,
	relay ports.RelayService,
	logger *zap.SugaredLogger,
) ports.PresenceService {
	return &presenceService{
		store:    store,
		registry: registry,
		relay:    relay,
		logger:   logger,
	}
}

func (s *presenceService) Join(ctx context.Context, roomID domain.RoomID, member ports.Member, conn ports.Conn) ([]string, error) {
	s.registry.Register(roomID, conn)

	userID := member.UserID.String()
	if err := s.store.Add(ctx, roomID, userID); err != nil {
		s.logger.Errorw("Failed to add presence",
			"room_id", roomID, "user_id", member.UserID, "conn_id", conn.ID(), "error", err)
	}

	members := s.snapshot(ctx, roomID, func(known []string) []string {
		return appendMissing(known, userID)
	})
	return members, s.relay.PublishPresence(ctx, roomID, members)
}

func (s *presenceService) Leave(ctx context.Context, roomID domain.RoomID, member ports.Member, conn ports.Conn) ([]string, error) {
	s.registry.Unregister(roomID, conn)

	userID := member.UserID.String()
	if err := s.store.Remove(ctx, roomID, userID); err != nil {
		s.logger.Errorw("Failed to remove presence",
			"room_id", roomID, "user_id", member.UserID, "conn_id", conn.ID(), "error", err)
	}

	members := s.snapshot(ctx, roomID, func(known []string) []string {
		return without(known, userID)
	})
	return members, s.relay.PublishPresence(ctx, roomID, members)
}

func (s *presenceService) Disconnect(ctx context.Context, conn ports.Conn, joined map[domain.RoomID]ports.Member) {
	for roomID, member := range joined {
		if _, err := s.Leave(ctx, roomID, member, conn); err != nil {
			s.logger.Warnw("Presence cleanup failed", "room_id", roomID, "conn_id", conn.ID(), "error", err)
		}

		name := member.Username
		if name == "" {
			name = member.UserID.String()
		}
		event := domain.NewChatEvent(domain.ChatEventLeave, roomID, member.UserID, name, fmt.Sprintf("%s left!", name))
		if err := s.relay.Publish(ctx, event); err != nil {
			s.logger.Warnw("Failed to announce disconnect", "room_id", roomID, "conn_id", conn.ID(), "error", err)
		}
	}
}

func (s *presenceService) Participants(ctx context.Context, roomID domain.RoomID) ([]string, error) {
	members, err := s.store.Members(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// snapshot reads the current member set. When the store is unavailable the
// fallback is applied to an empty set so the broadcast still goes out.
func (s *presenceService) snapshot(ctx context.Context, roomID domain.RoomID, fallback func([]string) []string) []string {
	members, err := s.store.Members(ctx, roomID)
	if err != nil {
		s.logger.Errorw("Failed to read presence", "room_id", roomID, "error", err)
		return fallback([]string{})
	}
	if members == nil {
		members = []string{}
	}
	return members
}

func appendMissing(set []string, v string) []string {
	for _, m := range set {
		if m == v {
			return set
		}
	}
	return append(set, v)
}

func without(set []string, v string) []string {
	out := set[:0]
	for _, m := range set {
		if m != v {
			out = append(out, m)
		}
	}
	return out
}
