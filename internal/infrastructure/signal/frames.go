package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"cinesync/internal/core/domain"
)

// Client destinations under /room/{roomId}/.
const (
	actionJoin   = "join"
	actionChat   = "chat"
	actionLeave  = "leave"
	actionSync   = "sync"
	actionSignal = "signal"
)

// protocolError is a frame the server cannot interpret. It ends the
// connection with 1007 instead of being reported on the errors queue.
type protocolError struct {
	reason string
}

func (e *protocolError) Error() string { return e.reason }

func (e *protocolError) Unwrap() error { return domain.ErrInvalidEvent }

func protocolErrorf(format string, args ...interface{}) error {
	return &protocolError{reason: fmt.Sprintf(format, args...)}
}

type inboundFrame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

type frameHead struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

// parsedFrame is a frame whose envelope has been checked.
type parsedFrame struct {
	destination string
	action      string
	roomID      domain.RoomID
	kind        string
	body        json.RawMessage
}

func parseFrame(data []byte) (parsedFrame, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return parsedFrame{}, protocolErrorf("undecodable frame")
	}

	roomID, action, err := parseDestination(f.Destination)
	if err != nil {
		return parsedFrame{}, err
	}

	if len(f.Body) == 0 {
		return parsedFrame{}, protocolErrorf("frame without body")
	}
	var head frameHead
	if err := json.Unmarshal(f.Body, &head); err != nil {
		return parsedFrame{}, protocolErrorf("undecodable body")
	}
	if strings.TrimSpace(head.Type) == "" {
		return parsedFrame{}, protocolErrorf("body without type")
	}
	if head.RoomID == 0 {
		return parsedFrame{}, protocolErrorf("body without roomId")
	}
	if head.RoomID != roomID {
		return parsedFrame{}, protocolErrorf("roomId %d does not match destination", head.RoomID)
	}

	return parsedFrame{
		destination: f.Destination,
		action:      action,
		roomID:      roomID,
		kind:        head.Type,
		body:        f.Body,
	}, nil
}

func parseDestination(dest string) (domain.RoomID, string, error) {
	parts := strings.Split(strings.Trim(dest, "/"), "/")
	if len(parts) != 3 || parts[0] != "room" {
		return 0, "", protocolErrorf("unknown destination %q", dest)
	}
	roomID, err := domain.ParseRoomID(parts[1])
	if err != nil {
		return 0, "", protocolErrorf("unknown destination %q", dest)
	}
	switch parts[2] {
	case actionJoin, actionChat, actionLeave, actionSync, actionSignal:
		return roomID, parts[2], nil
	}
	return 0, "", protocolErrorf("unknown destination %q", dest)
}
