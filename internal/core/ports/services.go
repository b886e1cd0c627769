package ports

import (
	"context"

	"cinesync/internal/core/domain"
)

type CreateRoomInput struct {
	Name     string `json:"roomName"`
	IsPublic bool   `json:"isPublic"`
	MaxUsers *int   `json:"maxUsers"`
}

// HostResolver is the narrow read used to establish host authority.
type HostResolver interface {
	GetHostID(ctx context.Context, roomID domain.RoomID) (domain.UserID, error)
}

type MembershipChecker interface {
	IsParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

type RoomService interface {
	HostResolver
	MembershipChecker

	CreateRoom(ctx context.Context, in CreateRoomInput, hostID domain.UserID) (*domain.RoomSummary, error)
	JoinRoom(ctx context.Context, code string, userID domain.UserID) (*domain.RoomSummary, error)
	LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.LeaveResult, error)
	LeaveRoomByCode(ctx context.Context, code string, userID domain.UserID) (domain.LeaveResult, error)
	GetPublicRooms(ctx context.Context) ([]domain.RoomSummary, error)
	GetRoomByCode(ctx context.Context, code string) (*domain.RoomSummary, error)
}

type RelayService interface {
	Publish(ctx context.Context, event domain.ChatEvent) error
	PublishSignal(ctx context.Context, event domain.SignalEvent) error
	PublishPresence(ctx context.Context, roomID domain.RoomID, participants []string) error
	History(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEvent, error)
	// Run attaches this instance to every room channel until ctx is done.
	Run(ctx context.Context) error
}

// Member identifies who a socket joined a room as.
type Member struct {
	UserID   domain.UserID
	Username string
}

type PresenceService interface {
	Join(ctx context.Context, roomID domain.RoomID, member Member, conn Conn) ([]string, error)
	Leave(ctx context.Context, roomID domain.RoomID, member Member, conn Conn) ([]string, error)
	// Disconnect cleans up after a socket closed without leaving.
	Disconnect(ctx context.Context, conn Conn, joined map[domain.RoomID]Member)
	Participants(ctx context.Context, roomID domain.RoomID) ([]string, error)
}

type StreamService interface {
	Start(ctx context.Context, roomID domain.RoomID, userID domain.UserID, mediaType domain.MediaType, source string) (domain.Snapshot, error)
	Pause(ctx context.Context, roomID domain.RoomID, userID domain.UserID, position float64) (domain.Snapshot, error)
	Resume(ctx context.Context, roomID domain.RoomID, userID domain.UserID, position float64) (domain.Snapshot, error)
	Stop(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Snapshot, error)
	GetState(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, error)
}
