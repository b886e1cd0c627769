package domain

import (
	"fmt"
	"strings"
)

const (
	roomChannelPrefix = "chat.room."

	// RoomChannelPattern matches every room channel on the bus.
	RoomChannelPattern = roomChannelPrefix + "*"
)

// RoomChannel is the bus channel carrying a room's chat, presence and signal events.
func RoomChannel(id RoomID) string {
	return roomChannelPrefix + id.String()
}

func RoomIDFromChannel(channel string) (RoomID, error) {
	if !strings.HasPrefix(channel, roomChannelPrefix) {
		return 0, fmt.Errorf("channel %q: %w", channel, ErrInvalidEvent)
	}
	return ParseRoomID(strings.TrimPrefix(channel, roomChannelPrefix))
}

func RoomTopic(id RoomID) string {
	return "/topic/room/" + id.String()
}

func ParticipantsTopic(id RoomID) string {
	return RoomTopic(id) + "/participants"
}

func SignalTopic(id RoomID) string {
	return RoomTopic(id) + "/signal"
}

// ErrorsQueue receives non-fatal rejections addressed to a single socket.
const ErrorsQueue = "/user/queue/errors"
