package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/pkg/circuitbreaker"
	"cinesync/pkg/tracing"
	"cinesync/pkg/utils"
	"cinesync/pkg/validation"
)

// Event kinds used for metrics and routing.
const (
	kindChat     = "chat"
	kindPresence = "presence"
	kindSignal   = "signal"
)

type relayService struct {
	bus      ports.MessageBus
	history  ports.HistoryStore
	registry ports.ConnectionRegistry
	breaker  *circuitbreaker.CircuitBreaker
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

// RelayService fans room events out over the bus and delivers what the bus
// hands back to local sockets. It also turns room closure and stream
// transitions into chat events.
type RelayService interface {
	ports.RelayService
	ports.RoomEvents
	ports.StreamEvents
}

func NewRelayService(
	bus ports.MessageBus,
	history ports.HistoryStore,
	registry ports.ConnectionRegistry,
	breaker *circuitbreaker.CircuitBreaker,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) RelayService {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	s := &relayService{
		bus:      bus,
		history:  history,
		registry: registry,
		breaker:  breaker,
		metrics:  metrics,
		logger:   logger,
	}
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("Bus circuit breaker changed state", "from", from.String(), "to", to.String())
	})
	return s
}

func (s *relayService) Publish(ctx context.Context, event domain.ChatEvent) error {
	event.Normalize()
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Type == domain.ChatEventChat {
		event.Content = utils.SanitizeString(event.Content)
		if err := validation.ValidateChatContent(event.Content); err != nil {
			return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
		}
	}

	if event.Type.Recorded() {
		if err := s.history.Append(ctx, event, domain.HistorySize); err != nil {
			s.logger.Errorw("Failed to append chat history", "room_id", event.RoomID, "error", err)
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode chat event: %w", err)
	}
	s.publish(ctx, event.RoomID, kindChat, payload)
	return nil
}

func (s *relayService) PublishSignal(ctx context.Context, event domain.SignalEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}
	s.publish(ctx, event.RoomID, kindSignal, payload)
	return nil
}

func (s *relayService) PublishPresence(ctx context.Context, roomID domain.RoomID, participants []string) error {
	payload, err := json.Marshal(domain.NewPresenceEvent(roomID, participants))
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}
	s.publish(ctx, roomID, kindPresence, payload)
	return nil
}

// publish is fire-and-forget: failures are logged and counted, never returned.
func (s *relayService) publish(ctx context.Context, roomID domain.RoomID, kind string, payload []byte) {
	channel := domain.RoomChannel(roomID)
	ctx, span := tracing.TraceBusPublish(ctx, channel)
	defer span.End()

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.bus.Publish(ctx, channel, payload)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.metrics.PublishFailed(kind)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			s.logger.Debugw("Dropped event, bus breaker open", "room_id", roomID, "kind", kind)
			return
		}
		s.logger.Errorw("Failed to publish event", "room_id", roomID, "kind", kind, "channel", channel, "error", err)
		return
	}
	s.metrics.EventPublished(kind)
}

func (s *relayService) History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEvent, error) {
	events, err := s.history.List(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	if events == nil {
		events = []domain.ChatEvent{}
	}
	return events, nil
}

func (s *relayService) Run(ctx context.Context) error {
	s.logger.Infow("Subscribing to room channels", "pattern", domain.RoomChannelPattern)
	err := s.bus.Subscribe(ctx, domain.RoomChannelPattern, s.deliver)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("room channel subscription ended: %w", err)
	}
	return nil
}

// deliver routes one bus message to the sockets this instance holds.
func (s *relayService) deliver(channel string, payload []byte) {
	roomID, err := domain.RoomIDFromChannel(channel)
	if err != nil {
		s.logger.Warnw("Dropping message on unexpected channel", "channel", channel)
		return
	}

	kind, destination, err := classify(roomID, payload)
	if err != nil {
		s.logger.Warnw("Dropping malformed room message", "room_id", roomID, "error", err)
		return
	}

	n := s.registry.Broadcast(roomID, destination, payload)
	s.metrics.EventDelivered(kind, n)
}

func classify(roomID domain.RoomID, payload []byte) (kind, destination string, err error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", "", fmt.Errorf("decode: %w", domain.ErrInvalidEvent)
	}

	switch {
	case head.Type == "":
		return "", "", fmt.Errorf("missing type: %w", domain.ErrInvalidEvent)
	case head.Type == domain.PresenceEventType:
		return kindPresence, domain.ParticipantsTopic(roomID), nil
	case domain.IsSignalType(head.Type):
		return kindSignal, domain.SignalTopic(roomID), nil
	case domain.ChatEventType(strings.ToUpper(head.Type)).Valid():
		return kindChat, domain.RoomTopic(roomID), nil
	}
	return "", "", fmt.Errorf("unknown type %q: %w", head.Type, domain.ErrInvalidEvent)
}

func (s *relayService) RoomClosed(ctx context.Context, room domain.Room, by domain.UserID) {
	event := domain.NewChatEvent(domain.ChatEventHostLeft, room.ID, by, "",
		fmt.Sprintf("Room %q has been closed", room.Name))
	if err := s.Publish(ctx, event); err != nil {
		s.logger.Errorw("Failed to announce room closure", "room_id", room.ID, "error", err)
	}
}

func (s *relayService) StreamChanged(ctx context.Context, roomID domain.RoomID, by domain.UserID, snap domain.Snapshot) {
	body, err := json.Marshal(snap)
	if err != nil {
		s.logger.Errorw("Failed to encode stream snapshot", "room_id", roomID, "error", err)
		return
	}
	event := domain.NewChatEvent(domain.ChatEventSync, roomID, by, "", string(body))
	if err := s.Publish(ctx, event); err != nil {
		s.logger.Errorw("Failed to announce stream change", "room_id", roomID, "error", err)
	}
}
