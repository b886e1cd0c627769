package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type SignalType string

const (
	SignalOffer  SignalType = "OFFER"
	SignalAnswer SignalType = "ANSWER"
	SignalICE    SignalType = "ICE"
)

// ParseSignalType matches case-insensitively, so "offer" and "Offer" are OFFER.
func ParseSignalType(s string) (SignalType, error) {
	switch SignalType(strings.ToUpper(strings.TrimSpace(s))) {
	case SignalOffer:
		return SignalOffer, nil
	case SignalAnswer:
		return SignalAnswer, nil
	case SignalICE:
		return SignalICE, nil
	}
	return "", fmt.Errorf("signal type %q: %w", s, ErrInvalidEvent)
}

func (t *SignalType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("signal type: %w", ErrInvalidEvent)
	}
	parsed, err := ParseSignalType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsSignalType reports whether s names a signal type in any letter case.
func IsSignalType(s string) bool {
	_, err := ParseSignalType(s)
	return err == nil
}

// SignalEvent is relayed verbatim and never stored. Payload is an SDP or ICE
// candidate blob the server does not inspect.
type SignalEvent struct {
	Type    SignalType      `json:"type"`
	RoomID  RoomID          `json:"roomId"`
	Sender  string          `json:"sender"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e SignalEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("signal without type: %w", ErrInvalidEvent)
	}
	if e.RoomID == 0 {
		return fmt.Errorf("signal without room id: %w", ErrInvalidEvent)
	}
	return nil
}
