package domain

import (
	"fmt"
	"strings"
	"time"
)

type ChatEventType string

const (
	ChatEventJoin     ChatEventType = "JOIN"
	ChatEventChat     ChatEventType = "CHAT"
	ChatEventLeave    ChatEventType = "LEAVE"
	ChatEventHostLeft ChatEventType = "HOST_LEFT"
	ChatEventSync     ChatEventType = "SYNC"
)

// HistorySize is the number of CHAT events kept per room.
const HistorySize = 50

func (t ChatEventType) Valid() bool {
	switch t {
	case ChatEventJoin, ChatEventChat, ChatEventLeave, ChatEventHostLeft, ChatEventSync:
		return true
	}
	return false
}

// Recorded reports whether events of this type belong in room history.
func (t ChatEventType) Recorded() bool {
	return t == ChatEventChat
}

type ChatEvent struct {
	Type      ChatEventType `json:"type"`
	RoomID    RoomID        `json:"roomId"`
	Sender    string        `json:"sender,omitempty"`
	UserID    UserID        `json:"userId,omitempty"`
	Content   string        `json:"content,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

func NewChatEvent(t ChatEventType, roomID RoomID, userID UserID, sender, content string) ChatEvent {
	return ChatEvent{
		Type:      t,
		RoomID:    roomID,
		Sender:    sender,
		UserID:    userID,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Normalize upper-cases the type and stamps a missing timestamp.
func (e *ChatEvent) Normalize() {
	e.Type = ChatEventType(strings.ToUpper(strings.TrimSpace(string(e.Type))))
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
}

func (e ChatEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("chat event type %q: %w", e.Type, ErrInvalidEvent)
	}
	if e.RoomID == 0 {
		return fmt.Errorf("chat event without room id: %w", ErrInvalidEvent)
	}
	return nil
}

// PresenceEventType tags presence snapshots travelling on the room channel.
const PresenceEventType = "PRESENCE"

type PresenceEvent struct {
	Type         string   `json:"type"`
	RoomID       RoomID   `json:"roomId"`
	Participants []string `json:"participants"`
	Timestamp    int64    `json:"timestamp"`
}

func NewPresenceEvent(roomID RoomID, participants []string) PresenceEvent {
	if participants == nil {
		participants = []string{}
	}
	return PresenceEvent{
		Type:         PresenceEventType,
		RoomID:       roomID,
		Participants: participants,
		Timestamp:    time.Now().UnixMilli(),
	}
}
