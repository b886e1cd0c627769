package domain

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidRoomCode         = errors.New("invalid room code")
	ErrRoomNotFound            = errors.New("room not found")
	ErrRoomFull                = errors.New("room is full")
	ErrAlreadyJoined           = errors.New("user already joined this room")
	ErrNotParticipant          = errors.New("user is not a participant of this room")
	ErrUnauthorizedRoomAction  = errors.New("only the room host can perform this action")
	ErrRoomClosed              = errors.New("room is closed")
	ErrRoomCodeTaken           = errors.New("room code already in use")
	ErrLockTimeout             = errors.New("timed out waiting for room lock")
	ErrStreamNotFound          = errors.New("stream not found")
	ErrInvalidStreamTransition = errors.New("invalid stream state transition")
	ErrInvalidEvent            = errors.New("invalid event")
)
