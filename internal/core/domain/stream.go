package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type StreamStatus string

const (
	StreamIdle    StreamStatus = "IDLE"
	StreamStarted StreamStatus = "STARTED"
	StreamPaused  StreamStatus = "PAUSED"
	StreamStopped StreamStatus = "STOPPED"
)

type MediaType string

const (
	MediaMP4    MediaType = "MP4"
	MediaScreen MediaType = "SCREEN"
)

// ParseMediaType is case-insensitive.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToUpper(strings.TrimSpace(s))) {
	case MediaMP4:
		return MediaMP4, nil
	case MediaScreen:
		return MediaScreen, nil
	}
	return "", fmt.Errorf("media type %q: %w", s, ErrInvalidInput)
}

// StreamState is the durable per-room playback record.
type StreamState struct {
	ID           uint64       `json:"id"`
	RoomID       RoomID       `json:"roomId"`
	HostUserID   UserID       `json:"hostUserId"`
	MediaType    MediaType    `json:"mediaType"`
	Status       StreamStatus `json:"status"`
	MediaSource  string       `json:"mediaSource"`
	PlaybackTime float64      `json:"playbackTime"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func NewStreamState(roomID RoomID, hostID UserID) *StreamState {
	return &StreamState{
		RoomID:     roomID,
		HostUserID: hostID,
		Status:     StreamIdle,
		UpdatedAt:  time.Now(),
	}
}

// Start begins a fresh episode at position zero. Allowed from any status.
func (s *StreamState) Start(media MediaType, source string, now time.Time) {
	s.MediaType = media
	s.MediaSource = source
	s.Status = StreamStarted
	s.PlaybackTime = 0
	s.StartedAt = &now
	s.UpdatedAt = now
}

func (s *StreamState) Pause(position float64, now time.Time) error {
	if err := validPosition(position); err != nil {
		return err
	}
	if s.Status != StreamStarted && s.Status != StreamPaused {
		return fmt.Errorf("pause from %s: %w", s.Status, ErrInvalidStreamTransition)
	}
	s.Status = StreamPaused
	s.PlaybackTime = position
	s.UpdatedAt = now
	return nil
}

func (s *StreamState) Resume(position float64, now time.Time) error {
	if err := validPosition(position); err != nil {
		return err
	}
	if s.Status != StreamPaused && s.Status != StreamStarted {
		return fmt.Errorf("resume from %s: %w", s.Status, ErrInvalidStreamTransition)
	}
	s.Status = StreamStarted
	s.PlaybackTime = position
	s.UpdatedAt = now
	return nil
}

func (s *StreamState) Stop(now time.Time) {
	s.Status = StreamStopped
	s.UpdatedAt = now
}

// Snapshot is the live view kept in the shared store.
func (s *StreamState) Snapshot() Snapshot {
	t := s.PlaybackTime
	return Snapshot{Status: s.Status, Media: s.MediaSource, Time: &t}
}

func validPosition(position float64) error {
	if position < 0 || math.IsNaN(position) || math.IsInf(position, 0) {
		return fmt.Errorf("playback position %v: %w", position, ErrInvalidInput)
	}
	return nil
}

// Snapshot is serialized as {status, media, time}; a stopped or unknown
// stream is just {status: STOPPED}.
type Snapshot struct {
	Status StreamStatus `json:"status"`
	Media  string       `json:"media,omitempty"`
	Time   *float64     `json:"time,omitempty"`
}

func StoppedSnapshot() Snapshot {
	return Snapshot{Status: StreamStopped}
}
