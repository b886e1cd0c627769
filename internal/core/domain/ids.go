package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type RoomID uint64
type UserID int64
type RoomCode string

func (id RoomID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both 42 and "42".
func (id *RoomID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	parsed, err := ParseRoomID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalJSON accepts both 7 and "7".
func (id *UserID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", raw, ErrInvalidInput)
	}
	*id = UserID(v)
	return nil
}

func ParseRoomID(s string) (RoomID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid room id %q: %w", s, ErrInvalidInput)
	}
	return RoomID(v), nil
}

// ParseUserID parses a gateway supplied user id. Only positive ids are valid.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid user id %q: %w", s, ErrInvalidInput)
	}
	return UserID(v), nil
}

// NormalizeRoomCode trims and upper-cases a user supplied join code.
func NormalizeRoomCode(s string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(s)))
}

var _ json.Unmarshaler = (*RoomID)(nil)
