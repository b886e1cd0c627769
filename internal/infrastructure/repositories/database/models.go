package database

import (
	"time"

	"cinesync/internal/core/domain"
)

type RoomModel struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	RoomCode   string    `gorm:"size:20;not null;uniqueIndex"`
	HostUserID int64     `gorm:"not null;index"`
	RoomName   string    `gorm:"size:100;not null"`
	IsPublic   bool      `gorm:"not null;index"`
	MaxUsers   *int      `gorm:""`
	CreatedAt  time.Time `gorm:"not null"`
}

func (RoomModel) TableName() string { return "rooms" }

type ParticipantModel struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID   uint64    `gorm:"not null;uniqueIndex:idx_room_user"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_room_user;index"`
	JoinedAt time.Time `gorm:"not null"`
}

func (ParticipantModel) TableName() string { return "room_participants" }

type StreamModel struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	RoomID       uint64     `gorm:"not null;uniqueIndex"`
	HostUserID   int64      `gorm:"not null"`
	MediaType    string     `gorm:"size:16"`
	Status       string     `gorm:"size:16;not null"`
	MediaSource  string     `gorm:"size:2048"`
	PlaybackTime float64    `gorm:"not null;default:0"`
	StartedAt    *time.Time `gorm:""`
	UpdatedAt    time.Time  `gorm:"not null"`
}

func (StreamModel) TableName() string { return "streams" }

func toRoomModel(r *domain.Room) *RoomModel {
	return &RoomModel{
		ID:         uint64(r.ID),
		RoomCode:   string(r.Code),
		HostUserID: int64(r.HostUserID),
		RoomName:   r.Name,
		IsPublic:   r.IsPublic,
		MaxUsers:   r.MaxUsers,
		CreatedAt:  r.CreatedAt,
	}
}

// Rows only exist for open rooms, so Active is always true here.
func (m *RoomModel) toDomain() *domain.Room {
	return &domain.Room{
		ID:         domain.RoomID(m.ID),
		Code:       domain.RoomCode(m.RoomCode),
		HostUserID: domain.UserID(m.HostUserID),
		Name:       m.RoomName,
		IsPublic:   m.IsPublic,
		MaxUsers:   m.MaxUsers,
		Active:     true,
		CreatedAt:  m.CreatedAt,
	}
}

func toStreamModel(s *domain.StreamState) *StreamModel {
	return &StreamModel{
		ID:           s.ID,
		RoomID:       uint64(s.RoomID),
		HostUserID:   int64(s.HostUserID),
		MediaType:    string(s.MediaType),
		Status:       string(s.Status),
		MediaSource:  s.MediaSource,
		PlaybackTime: s.PlaybackTime,
		StartedAt:    s.StartedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (m *StreamModel) toDomain() *domain.StreamState {
	return &domain.StreamState{
		ID:           m.ID,
		RoomID:       domain.RoomID(m.RoomID),
		HostUserID:   domain.UserID(m.HostUserID),
		MediaType:    domain.MediaType(m.MediaType),
		Status:       domain.StreamStatus(m.Status),
		MediaSource:  m.MediaSource,
		PlaybackTime: m.PlaybackTime,
		StartedAt:    m.StartedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
