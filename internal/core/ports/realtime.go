package ports

import (
	"context"

	"cinesync/internal/core/domain"
)

// MessageBus is the cross-instance broadcast medium. Publish is
// at-most-once; Subscribe blocks until ctx is done.
type MessageBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
	Close() error
}

// Conn is a live client socket held by this instance.
type Conn interface {
	ID() string
	Send(destination string, body []byte) error
}

// ConnectionRegistry maps rooms to the sockets this instance holds for them.
type ConnectionRegistry interface {
	Register(roomID domain.RoomID, conn Conn)
	Unregister(roomID domain.RoomID, conn Conn)
	// Broadcast returns the number of sockets that accepted the frame.
	Broadcast(roomID domain.RoomID, destination string, body []byte) int
	Count(roomID domain.RoomID) int
}

// RoomEvents is notified after a room has been deleted.
type RoomEvents interface {
	RoomClosed(ctx context.Context, room domain.Room, by domain.UserID)
}

// StreamEvents is notified after every stream transition.
type StreamEvents interface {
	StreamChanged(ctx context.Context, roomID domain.RoomID, by domain.UserID, snap domain.Snapshot)
}

type MetricsRecorder interface {
	RoomCreated()
	RoomClosed()
	JoinAttempt(result string)
	ConnectionOpened()
	ConnectionClosed()
	EventPublished(kind string)
	EventDelivered(kind string, sockets int)
	PublishFailed(kind string)
	StreamTransition(status domain.StreamStatus)
}
