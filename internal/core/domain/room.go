package domain

import "time"

const (
	RoomCodeLength  = 8
	RoomNameMinLen  = 3
	RoomNameMaxLen  = 100
	RoomMinCapacity = 2
	RoomMaxCapacity = 100
)

type Room struct {
	ID         RoomID    `json:"id"`
	Code       RoomCode  `json:"roomCode"`
	HostUserID UserID    `json:"hostUserId"`
	Name       string    `json:"roomName"`
	IsPublic   bool      `json:"isPublic"`
	MaxUsers   *int      `json:"maxUsers"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsHost reports whether userID owns the room.
func (r *Room) IsHost(userID UserID) bool {
	return r.HostUserID == userID
}

// HasCapacityFor reports whether one more participant fits given the current count.
// A nil MaxUsers means unlimited.
func (r *Room) HasCapacityFor(current int) bool {
	if r.MaxUsers == nil {
		return true
	}
	return current < *r.MaxUsers
}

type Participant struct {
	RoomID   RoomID    `json:"roomId"`
	UserID   UserID    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomSummary is a room together with its live participant count.
type RoomSummary struct {
	Room
	ParticipantCount int `json:"participantCount"`
}

// LeaveResult describes what a leave call changed.
type LeaveResult struct {
	Left        bool
	WasHost     bool
	RoomDeleted bool
}
