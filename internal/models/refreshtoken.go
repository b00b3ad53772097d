package models

import (
	"time"

	"github.com/google/uuid"
)

// Refresh token bound to a single (user, device) pair
// The token value is the primary key; it's replaced on every rotation
type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Session is a live refresh token as its owner sees it: device and dates without the token value
type Session struct {
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (t RefreshToken) Session() Session {
	return Session{
		UserAgent: t.UserAgent,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
