package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/middleware"
	"cinesync/pkg/config"
	apperrors "cinesync/pkg/errors"
	"cinesync/pkg/optimize"
	"cinesync/pkg/tracing"
	"cinesync/pkg/utils"
)

type Options struct {
	PingInterval       time.Duration
	PongTimeout        time.Duration
	WriteTimeout       time.Duration
	SendBufferSize     int
	MaxMessageSize     int64
	AllowedOrigins     []string
	ValidateRoomAccess bool

	// Zero MessagesPerSecond disables the per-socket limiter.
	MessagesPerSecond float64
	MessageBurst      int
	// Zero MaxConnections means unlimited.
	MaxConnections int
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		PingInterval:       cfg.Realtime.PingInterval,
		PongTimeout:        cfg.Realtime.PongTimeout,
		WriteTimeout:       cfg.Realtime.WriteTimeout,
		SendBufferSize:     cfg.Realtime.SendBufferSize,
		MaxMessageSize:     cfg.Realtime.MaxMessageSizeBytes,
		AllowedOrigins:     cfg.Realtime.AllowedOrigins,
		ValidateRoomAccess: cfg.Realtime.ValidateRoomAccess,
	}
	if cfg.RateLimiting.Enabled {
		opts.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		opts.MessageBurst = cfg.RateLimiting.WebSocket.Burst
		opts.MaxConnections = cfg.RateLimiting.WebSocket.MaxConcurrent
	}
	return opts
}

// Dependencies of the websocket surface. Access and Hosts are optional:
// without Access joins are not checked against room membership, without
// Hosts client SYNC frames are relayed from any joined member.
type Dependencies struct {
	Presence ports.PresenceService
	Relay    ports.RelayService
	Registry *Registry
	Access   ports.MembershipChecker
	Hosts    ports.HostResolver
	Metrics  ports.MetricsRecorder
}

type WebSocketServer struct {
	deps     Dependencies
	opts     Options
	upgrader websocket.Upgrader
	buffers  *optimize.BufferPool
	slots    chan struct{}

	mu      sync.RWMutex
	clients map[string]*client

	logger *zap.SugaredLogger
}

func NewWebSocketServer(deps Dependencies, opts Options, logger *zap.SugaredLogger) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 64
	}

	s := &WebSocketServer{
		deps:    deps,
		opts:    opts,
		buffers: optimize.NewBufferPool(64 * 1024),
		clients: make(map[string]*client),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	if opts.MaxConnections > 0 {
		s.slots = make(chan struct{}, opts.MaxConnections)
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func writeHTTPError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.ParseIdentity(r.Header)
	if err != nil {
		writeHTTPError(w, apperrors.NewUnauthorizedError(middleware.ErrMissingIdentity.Error()))
		return
	}

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		default:
			writeHTTPError(w, apperrors.NewServiceUnavailableError("too many connections"))
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	var limiter *rate.Limiter
	if s.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)
	}
	c := newClient(utils.GenerateID("conn"), identity, conn, s.buffers, s.opts.SendBufferSize, limiter)

	s.track(c)
	defer s.untrack(c)

	s.logger.Infow("WebSocket connected", "conn_id", c.id, "user_id", identity.UserID)

	go c.writePump(s.opts.PingInterval, s.opts.WriteTimeout)
	s.readLoop(context.WithoutCancel(r.Context()), c)
	c.close()

	// Cleanup runs detached from the request so it finishes after the peer is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	s.deps.Registry.UnregisterAll(c)
	if len(c.joined) > 0 {
		s.deps.Presence.Disconnect(ctx, c, c.joined)
	}
	s.logger.Infow("WebSocket disconnected", "conn_id", c.id, "user_id", identity.UserID, "rooms", len(c.joined))
}

func (s *WebSocketServer) track(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ConnectionOpened()
	}
}

func (s *WebSocketServer) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ConnectionClosed()
	}
}

func (s *WebSocketServer) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Infow("WebSocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		err = s.handleFrame(ctx, c, data)
		if err == nil {
			continue
		}
		var perr *protocolError
		if errors.As(err, &perr) {
			s.logger.Infow("Closing WebSocket on invalid frame", "conn_id", c.id, "reason", perr.reason)
			c.closeWith(websocket.CloseInvalidFramePayloadData, perr.reason, s.opts.WriteTimeout)
			return
		}
		s.sendError(c, err)
	}
}

func (s *WebSocketServer) handleFrame(ctx context.Context, c *client, data []byte) error {
	f, err := parseFrame(data)
	if err != nil {
		return err
	}
	if !c.allow() {
		return apperrors.NewRateLimitError()
	}

	ctx, span := tracing.TraceWebSocketMessage(ctx, f.action, f.destination, c.id)
	defer span.End()
	span.SetAttributes(tracing.RoomIDKey.String(f.roomID.String()), tracing.UserIDKey.String(c.identity.UserID.String()))

	switch f.action {
	case actionJoin:
		err = s.handleJoin(ctx, c, f.roomID)
	case actionLeave:
		err = s.handleLeave(ctx, c, f.roomID)
	case actionChat:
		err = s.handleChat(ctx, c, f, domain.ChatEventChat)
	case actionSync:
		err = s.handleChat(ctx, c, f, domain.ChatEventSync)
	case actionSignal:
		err = s.handleSignal(ctx, c, f)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (s *WebSocketServer) handleJoin(ctx context.Context, c *client, roomID domain.RoomID) error {
	if _, ok := c.joined[roomID]; ok {
		return nil
	}
	if s.opts.ValidateRoomAccess && s.deps.Access != nil {
		ok, err := s.deps.Access.IsParticipant(ctx, roomID, c.identity.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user %d in room %d: %w", c.identity.UserID, roomID, domain.ErrNotParticipant)
		}
	}

	member := c.member()
	c.joined[roomID] = member
	if _, err := s.deps.Presence.Join(ctx, roomID, member, c); err != nil {
		s.logger.Warnw("Presence join failed", "room_id", roomID, "conn_id", c.id, "error", err)
	}

	event := domain.NewChatEvent(domain.ChatEventJoin, roomID, member.UserID, member.Username,
		fmt.Sprintf("%s joined!", member.Username))
	return s.deps.Relay.Publish(ctx, event)
}

func (s *WebSocketServer) handleLeave(ctx context.Context, c *client, roomID domain.RoomID) error {
	member, ok := c.joined[roomID]
	if !ok {
		return nil
	}
	delete(c.joined, roomID)
	if _, err := s.deps.Presence.Leave(ctx, roomID, member, c); err != nil {
		s.logger.Warnw("Presence leave failed", "room_id", roomID, "conn_id", c.id, "error", err)
	}

	event := domain.NewChatEvent(domain.ChatEventLeave, roomID, member.UserID, member.Username,
		fmt.Sprintf("%s left!", member.Username))
	return s.deps.Relay.Publish(ctx, event)
}

func (s *WebSocketServer) requireJoined(c *client, roomID domain.RoomID) error {
	if _, ok := c.joined[roomID]; !ok {
		return fmt.Errorf("socket %s has not joined room %d: %w", c.id, roomID, domain.ErrNotParticipant)
	}
	return nil
}

func (s *WebSocketServer) handleChat(ctx context.Context, c *client, f parsedFrame, want domain.ChatEventType) error {
	if err := s.requireJoined(c, f.roomID); err != nil {
		return err
	}

	var event domain.ChatEvent
	if err := json.Unmarshal(f.body, &event); err != nil {
		return protocolErrorf("undecodable chat body")
	}
	event.Normalize()
	if event.Type != want {
		return fmt.Errorf("%s frame on %s: %w", event.Type, f.destination, domain.ErrInvalidInput)
	}

	if want == domain.ChatEventSync && s.deps.Hosts != nil {
		hostID, err := s.deps.Hosts.GetHostID(ctx, f.roomID)
		if err != nil {
			return err
		}
		if hostID != c.identity.UserID {
			return fmt.Errorf("sync from user %d: %w", c.identity.UserID, domain.ErrUnauthorizedRoomAction)
		}
	}

	event.RoomID = f.roomID
	event.UserID = c.identity.UserID
	event.Sender = c.identity.Username
	return s.deps.Relay.Publish(ctx, event)
}

func (s *WebSocketServer) handleSignal(ctx context.Context, c *client, f parsedFrame) error {
	if err := s.requireJoined(c, f.roomID); err != nil {
		return err
	}

	var event domain.SignalEvent
	if err := json.Unmarshal(f.body, &event); err != nil {
		return protocolErrorf("undecodable signal body")
	}
	event.RoomID = f.roomID
	event.Sender = c.identity.UserID.String()
	return s.deps.Relay.PublishSignal(ctx, event)
}

// sendError reports a rejected frame on the socket's private errors queue.
func (s *WebSocketServer) sendError(c *client, err error) {
	appErr := apperrors.FromDomain(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		s.logger.Errorw("WebSocket frame failed", "conn_id", c.id, "error", err)
	}
	body, mErr := json.Marshal(map[string]string{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
	if mErr != nil {
		return
	}
	_ = c.Send(domain.ErrorsQueue, body)
}

func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes every socket with 1001 so clients reconnect elsewhere.
func (s *WebSocketServer) Shutdown() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.closeWith(websocket.CloseGoingAway, "server shutting down", s.opts.WriteTimeout)
	}
	s.logger.Infow("WebSocket server shut down", "closed", len(clients))
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.ConnectionCount(),
		"rooms":       s.deps.Registry.Rooms(),
	})
}
